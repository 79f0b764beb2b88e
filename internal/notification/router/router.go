// Package router maps a received push to the client action it should trigger.
package router

import (
	authdomain "grocery-backend/internal/auth/domain"

	"github.com/rs/zerolog"
)

// Screen is a client destination
type Screen string

const (
	ScreenNone      Screen = ""
	ScreenDashboard Screen = "dashboard"
	ScreenTracking  Screen = "tracking"
	ScreenChat      Screen = "chat"
)

// Hint is an extra instruction for the destination screen
type Hint string

const (
	HintNone       Hint = ""
	HintMapFocus   Hint = "map_focus"
	HintConfirmPIN Hint = "confirm_pin"
)

// Action is what the client does with a push
type Action struct {
	Screen      Screen `json:"screen"`
	OrderID     string `json:"order_id,omitempty"`
	Hint        Hint   `json:"hint,omitempty"`
	DeliveryPIN string `json:"delivery_pin,omitempty"`
}

// NoOp reports whether the push should be ignored
func (a Action) NoOp() bool {
	return a.Screen == ScreenNone
}

type rule struct {
	// roles allowed to act on the push, empty means any role
	roles  []authdomain.Role
	screen Screen
	hint   Hint
	pin    bool
}

var table = map[string]rule{
	"new_order":      {roles: []authdomain.Role{authdomain.RolePicker}, screen: ScreenDashboard},
	"packed_order":   {roles: []authdomain.Role{authdomain.RoleDriver}, screen: ScreenDashboard},
	"order_status":   {screen: ScreenTracking},
	"driver_nearby":  {screen: ScreenTracking, hint: HintMapFocus},
	"driver_arrived": {screen: ScreenTracking, hint: HintConfirmPIN, pin: true},
	"chat_message":   {screen: ScreenChat},
}

// Router resolves push data for the signed-in role
type Router struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Router {
	return &Router{logger: logger.With().Str("component", "Router").Logger()}
}

// Route returns the action for data received by a user holding role.
// Unknown types and role mismatches yield a no-op action.
func (r *Router) Route(role authdomain.Role, data map[string]string) Action {
	kind := data["type"]
	rl, ok := table[kind]
	if !ok {
		r.logger.Debug().Str("type", kind).Msg("Unknown push type, ignoring")
		return Action{}
	}
	if !rl.allows(role) {
		r.logger.Debug().Str("type", kind).Str("role", string(role)).Msg("Push not meant for this role")
		return Action{}
	}

	a := Action{Screen: rl.screen, OrderID: data["orderId"], Hint: rl.hint}
	if rl.pin {
		a.DeliveryPIN = data["deliveryPin"]
	}
	return a
}

func (rl rule) allows(role authdomain.Role) bool {
	if len(rl.roles) == 0 {
		return true
	}
	for _, r := range rl.roles {
		if r == role {
			return true
		}
	}
	return false
}
