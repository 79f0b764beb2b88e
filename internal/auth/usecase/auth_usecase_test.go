package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	authdomain "grocery-backend/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) SaveToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *mockTokenRepo) GetToken(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockTokenRepo) ClearToken(ctx context.Context, userID, token string) (bool, error) {
	args := m.Called(ctx, userID, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) DeleteToken(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      "driver-7",
		"role":     "driver",
		"store_id": "store-1",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
}

func TestValidateToken(t *testing.T) {
	uc := NewAuthUsecase(new(mockTokenRepo), testSecret)

	t.Run("Success", func(t *testing.T) {
		p, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
		require.NoError(t, err)
		assert.Equal(t, &authdomain.Principal{UserID: "driver-7", Role: authdomain.RoleDriver, StoreID: "store-1"}, p)
	})

	t.Run("Failure - wrong secret", func(t *testing.T) {
		_, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Failure - expired", func(t *testing.T) {
		c := validClaims()
		c["exp"] = time.Now().Add(-time.Minute).Unix()
		_, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Failure - missing expiry", func(t *testing.T) {
		c := validClaims()
		delete(c, "exp")
		_, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Failure - other signing method", func(t *testing.T) {
		_, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Failure - missing subject or unknown role", func(t *testing.T) {
		c := validClaims()
		delete(c, "sub")
		_, err := uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidClaims)

		c = validClaims()
		c["role"] = "superuser"
		_, err = uc.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("Failure - garbage", func(t *testing.T) {
		_, err := uc.ValidateToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPushTokenRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("Register saves the token", func(t *testing.T) {
		repo := new(mockTokenRepo)
		repo.On("SaveToken", ctx, "user-1", "tok").Return(nil).Once()

		require.NoError(t, NewAuthUsecase(repo, testSecret).RegisterPushToken(ctx, "user-1", "tok"))
		repo.AssertExpectations(t)
	})

	t.Run("Register wraps repository errors", func(t *testing.T) {
		repo := new(mockTokenRepo)
		repo.On("SaveToken", ctx, "user-1", "tok").Return(errors.New("db down")).Once()

		err := NewAuthUsecase(repo, testSecret).RegisterPushToken(ctx, "user-1", "tok")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("Unregister deletes the token", func(t *testing.T) {
		repo := new(mockTokenRepo)
		repo.On("DeleteToken", ctx, "user-1").Return(nil).Once()

		require.NoError(t, NewAuthUsecase(repo, testSecret).UnregisterPushToken(ctx, "user-1"))
		repo.AssertExpectations(t)
	})
}
