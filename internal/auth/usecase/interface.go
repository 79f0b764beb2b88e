package usecase

import (
	"context"

	authdomain "grocery-backend/internal/auth/domain"
)

// AuthUsecase verifies bearer tokens and manages the caller's push token.
// Tokens are issued by the account service; this service only verifies them.
type AuthUsecase interface {
	ValidateToken(tokenString string) (*authdomain.Principal, error)
	RegisterPushToken(ctx context.Context, userID, token string) error
	UnregisterPushToken(ctx context.Context, userID string) error
}
