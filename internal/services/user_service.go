package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokoBack/internal/models"
	"tokoBack/internal/repositories"
	"tokoBack/utils"
)

const (
	accessTokenTTL = 1 * time.Hour
)

type UserService struct {
	UserRepo     *repositories.UserRepository
	TokenManager *utils.Manager
}

type SignInResult struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

func (s *UserService) SignUp(ctx context.Context, user models.User) (models.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || user.Password == "" {
		return models.User{}, models.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	user.Password = string(hash)
	user.Role = "user"

	return s.UserRepo.CreateUser(ctx, user)
}

func (s *UserService) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.UserRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return SignInResult{}, models.ErrInvalidCredentials
		}
		return SignInResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return SignInResult{}, models.ErrInvalidCredentials
	}

	access, err := s.TokenManager.NewJWT(user.ID, user.Role, accessTokenTTL)
	if err != nil {
		return SignInResult{}, err
	}
	refresh, err := s.TokenManager.NewRefreshToken()
	if err != nil {
		return SignInResult{}, err
	}

	user.Password = ""
	return SignInResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id int) (models.User, error) {
	return s.UserRepo.GetUserByID(ctx, id)
}

func (s *UserService) UpdateFCMToken(ctx context.Context, userID int, token string) error {
	return s.UserRepo.UpdateFCMToken(ctx, userID, token)
}
