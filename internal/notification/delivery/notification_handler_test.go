package delivery

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authDelivery "grocery-backend/internal/auth/delivery"
	authdomain "grocery-backend/internal/auth/domain"
	"grocery-backend/internal/notification/router"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticAuth map[string]*authdomain.Principal

func (s staticAuth) ValidateToken(token string) (*authdomain.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.New("invalid token")
}

func (s staticAuth) RegisterPushToken(context.Context, string, string) error { return nil }
func (s staticAuth) UnregisterPushToken(context.Context, string) error       { return nil }

func TestRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := staticAuth{
		"customer": {UserID: "c-1", Role: authdomain.RoleCustomer},
		"picker":   {UserID: "p-1", Role: authdomain.RolePicker, StoreID: "s-1"},
	}
	r := gin.New()
	h := NewNotificationHandler(router.New(zerolog.Nop()))
	r.POST("/api/notifications/route", authDelivery.AuthMiddleware(auth), h.Route)

	post := func(token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/route", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("customer", `{"data":{"type":"driver_arrived","orderId":"o-1","deliveryPin":"9911"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":{"screen":"tracking","order_id":"o-1","hint":"confirm_pin","delivery_pin":"9911"},"noop":false}`, w.Body.String())

	w = post("customer", `{"data":{"type":"new_order","orderId":"o-1"}}`)
	assert.JSONEq(t, `{"action":{"screen":""},"noop":true}`, w.Body.String())

	w = post("picker", `{"data":{"type":"new_order","orderId":"o-1"}}`)
	assert.JSONEq(t, `{"action":{"screen":"dashboard","order_id":"o-1"},"noop":false}`, w.Body.String())

	w = post("picker", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
