package main

import (
	"database/sql"
	"log"
	"log/slog"
	"os"

	"firebase.google.com/go/messaging"
	"github.com/redis/go-redis/v9"

	"tokoBack/internal/cache"
	"tokoBack/internal/config"
	"tokoBack/internal/handlers"
	"tokoBack/internal/repositories"
	"tokoBack/internal/services"
	"tokoBack/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger
	logger   *slog.Logger
	db       *sql.DB

	tokenManager *utils.Manager
	wsManager    *WebSocketManager

	userRepo    *repositories.UserRepository
	productRepo *repositories.ProductRepository
	invoiceRepo *repositories.InvoiceRepository

	userHandler     *handlers.UserHandler
	productHandler  *handlers.ProductHandler
	categoryHandler *handlers.CategoryHandler
	brandHandler    *handlers.BrandHandler
	cartHandler     *handlers.CartHandler
	invoiceHandler  *handlers.InvoiceHandler
}

func initializeApp(db *sql.DB, rdb *redis.Client, fcmClient *messaging.Client, cfg config.Config, errorLog, infoLog *log.Logger) (*application, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	tokenManager, err := utils.NewManager(cfg.JWT.SigningKey)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := repositories.UserRepository{DB: db}
	productRepo := repositories.ProductRepository{DB: db}
	categoryRepo := repositories.CategoryRepository{DB: db}
	brandRepo := repositories.BrandRepository{DB: db}
	cartRepo := repositories.CartRepository{DB: db}
	invoiceRepo := repositories.InvoiceRepository{DB: db}

	// Payment gateway
	xenditService, err := services.NewXenditService(services.XenditConfig{
		SecretKey:      cfg.Xendit.SecretKey,
		BaseURL:        cfg.Xendit.BaseURL,
		CallbackToken:  cfg.Xendit.CallbackToken,
		SuccessBackURL: cfg.Xendit.SuccessBackURL,
		FailureBackURL: cfg.Xendit.FailureBackURL,
		DefaultEmail:   cfg.Xendit.DefaultEmail,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	wsManager := NewWebSocketManager()

	// Services
	userService := &services.UserService{UserRepo: &userRepo, TokenManager: tokenManager}
	productService := &services.ProductService{ProductRepo: &productRepo}
	categoryService := &services.CategoryService{CategoryRepo: &categoryRepo}
	brandService := &services.BrandService{BrandRepo: &brandRepo}
	fcmService := &services.FCMService{Client: fcmClient, UserRepo: &userRepo, Logger: logger}
	invoiceService := &services.InvoiceService{
		Invoices: &invoiceRepo,
		Gateway:  xenditService,
		Notifier: fcmService,
		Feed:     wsManager,
		Logger:   logger,
	}
	cartService := &services.CartService{
		CartRepo:    &cartRepo,
		ProductRepo: &productRepo,
		Cache:       cache.NewRedisCartCache(rdb),
		Invoices:    invoiceService,
		Logger:      logger,
	}

	var storage *utils.S3Storage
	if cfg.S3.AccessKey != "" {
		storage, err = utils.NewS3Storage(cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, err
		}
	} else {
		infoLog.Println("S3 not configured, image uploads disabled")
	}

	// Handlers
	userHandler := &handlers.UserHandler{Service: userService}
	productHandler := &handlers.ProductHandler{Service: productService, Storage: storage}
	categoryHandler := &handlers.CategoryHandler{Service: categoryService}
	brandHandler := &handlers.BrandHandler{Service: brandService}
	cartHandler := &handlers.CartHandler{Service: cartService}
	invoiceHandler := &handlers.InvoiceHandler{Service: invoiceService, Xendit: xenditService}

	return &application{
		errorLog:        errorLog,
		infoLog:         infoLog,
		logger:          logger,
		db:              db,
		tokenManager:    tokenManager,
		wsManager:       wsManager,
		userRepo:        &userRepo,
		productRepo:     &productRepo,
		invoiceRepo:     &invoiceRepo,
		userHandler:     userHandler,
		productHandler:  productHandler,
		categoryHandler: categoryHandler,
		brandHandler:    brandHandler,
		cartHandler:     cartHandler,
		invoiceHandler:  invoiceHandler,
	}, nil
}
