package services

import (
	"context"
	"errors"
	"time"

	"github.com/jaiguru/astro-remedy/internal/dtos"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/utils"
)

type AuthService struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(users UserStore, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login checks the password and issues an access token
func (s *AuthService) Login(ctx context.Context, req *dtos.LoginRequest) (*dtos.LoginResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateAccessToken(user.ID, user.Username, string(user.Role), s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	return &dtos.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User: dtos.UserResponse{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.Name(),
			Role:        string(user.Role),
		},
	}, nil
}
