package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"firebase.google.com/go/messaging"

	"tokoBack/internal/models"
	"tokoBack/internal/repositories"
)

// FCMService pushes a "payment received" notification to the invoice owner.
// It implements PaidNotifier and is best-effort: delivery failures are logged
// and never surfaced to the payment flow.
type FCMService struct {
	Client   *messaging.Client
	UserRepo *repositories.UserRepository
	Logger   *slog.Logger
}

func (s *FCMService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *FCMService) InvoicePaid(ctx context.Context, invoice models.Invoice) {
	if s.Client == nil {
		return
	}

	user, err := s.UserRepo.GetUserByID(ctx, invoice.UserID)
	if err != nil {
		s.logger().Warn("fcm: lookup invoice owner failed", "invoice_id", invoice.ID, "err", err)
		return
	}
	if user.FCMToken == "" {
		return
	}

	message := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: "Payment received",
			Body:  fmt.Sprintf("Your payment of %.2f was received.", invoice.PaymentAmount),
		},
		Data: map[string]string{
			"invoice_id": strconv.Itoa(invoice.ID),
			"status":     invoice.Status,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
		},
	}

	if _, err := s.Client.Send(ctx, message); err != nil {
		s.logger().Warn("fcm: send failed", "invoice_id", invoice.ID, "user_id", user.ID, "err", err)
	}
}
