package delivery

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "grocery-backend/internal/auth/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAuthUsecase struct {
	mock.Mock
}

func (m *mockAuthUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	args := m.Called(tokenString)
	p, _ := args.Get(0).(*authdomain.Principal)
	return p, args.Error(1)
}

func (m *mockAuthUsecase) RegisterPushToken(ctx context.Context, userID, token string) error {
	return m.Called(userID, token).Error(0)
}

func (m *mockAuthUsecase) UnregisterPushToken(ctx context.Context, userID string) error {
	return m.Called(userID).Error(0)
}

const validToken = "fGx1_Qz-k3:APA91bHabcdefghijklmnop"

func newRouter(uc *mockAuthUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(uc)
	g := r.Group("/api", AuthMiddleware(uc))
	g.GET("/auth/me", h.Me)
	g.POST("/push-tokens", h.RegisterPushToken)
	g.DELETE("/push-tokens", h.UnregisterPushToken)
	g.GET("/drivers-only", RequireRole(authdomain.RoleDriver), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	uc := new(mockAuthUsecase)
	uc.On("ValidateToken", "good").Return(&authdomain.Principal{UserID: "user-1", Role: authdomain.RoleCustomer}, nil)
	uc.On("ValidateToken", "bad").Return(nil, errors.New("invalid token"))
	r := newRouter(uc)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/api/auth/me", tt.auth, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := do(r, http.MethodGet, "/api/auth/me", "Bearer good", "")
	assert.JSONEq(t, `{"user_id":"user-1","role":"customer"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	uc := new(mockAuthUsecase)
	uc.On("ValidateToken", "customer").Return(&authdomain.Principal{UserID: "c", Role: authdomain.RoleCustomer}, nil)
	uc.On("ValidateToken", "driver").Return(&authdomain.Principal{UserID: "d", Role: authdomain.RoleDriver}, nil)
	r := newRouter(uc)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/drivers-only", "Bearer customer", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/api/drivers-only", "Bearer driver", "").Code)
}

func TestPushTokenEndpoints(t *testing.T) {
	newUC := func() *mockAuthUsecase {
		uc := new(mockAuthUsecase)
		uc.On("ValidateToken", "good").Return(&authdomain.Principal{UserID: "user-1", Role: authdomain.RoleCustomer}, nil)
		return uc
	}

	t.Run("Register stores a valid token", func(t *testing.T) {
		uc := newUC()
		uc.On("RegisterPushToken", "user-1", validToken).Return(nil).Once()

		w := do(newRouter(uc), http.MethodPost, "/api/push-tokens", "Bearer good", `{"token":"`+validToken+`"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("Register rejects malformed tokens", func(t *testing.T) {
		uc := newUC()
		r := newRouter(uc)

		for _, body := range []string{`{}`, `{"token":"short"}`, `{"token":"has spaces but is long enough"}`, `not json`} {
			w := do(r, http.MethodPost, "/api/push-tokens", "Bearer good", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		uc.AssertNotCalled(t, "RegisterPushToken", mock.Anything, mock.Anything)
	})

	t.Run("Register surfaces storage errors", func(t *testing.T) {
		uc := newUC()
		uc.On("RegisterPushToken", "user-1", validToken).Return(errors.New("db down")).Once()

		w := do(newRouter(uc), http.MethodPost, "/api/push-tokens", "Bearer good", `{"token":"`+validToken+`"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Unregister clears the token", func(t *testing.T) {
		uc := newUC()
		uc.On("UnregisterPushToken", "user-1").Return(nil).Once()

		w := do(newRouter(uc), http.MethodDelete, "/api/push-tokens", "Bearer good", "")
		assert.Equal(t, http.StatusOK, w.Code)
		uc.AssertExpectations(t)
	})
}
