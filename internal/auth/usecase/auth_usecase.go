package usecase

import (
	"context"
	"errors"
	"fmt"

	authdomain "grocery-backend/internal/auth/domain"
	"grocery-backend/internal/auth/repository"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	tokenRepo repository.TokenRepository
	jwtSecret []byte
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(tokenRepo repository.TokenRepository, jwtSecret string) AuthUsecase {
	return &authUsecase{
		tokenRepo: tokenRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return nil, ErrInvalidClaims
	}

	role, _ := claims["role"].(string)
	if !authdomain.ValidRole(authdomain.Role(role)) {
		return nil, ErrInvalidClaims
	}
	storeID, _ := claims["store_id"].(string)

	return &authdomain.Principal{
		UserID:  userID,
		Role:    authdomain.Role(role),
		StoreID: storeID,
	}, nil
}

func (u *authUsecase) RegisterPushToken(ctx context.Context, userID, token string) error {
	if err := u.tokenRepo.SaveToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to save push token: %w", err)
	}
	return nil
}

func (u *authUsecase) UnregisterPushToken(ctx context.Context, userID string) error {
	if err := u.tokenRepo.DeleteToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}
