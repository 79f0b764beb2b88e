package domain

import "time"

// Role of a user inside a store
type Role string

const (
	RoleCustomer Role = "customer"
	RolePicker   Role = "picker"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// OnlineStatus is the staff availability flag
type OnlineStatus string

const (
	StatusOnline  OnlineStatus = "online"
	StatusOffline OnlineStatus = "offline"
	StatusBusy    OnlineStatus = "busy"
)

type User struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name"`
	StoreID      string       `json:"store_id,omitempty" gorm:"index"`
	Role         Role         `json:"role" gorm:"index;not null"`
	OnlineStatus OnlineStatus `json:"online_status" gorm:"default:offline"`
	PushToken    *string      `json:"-"` // Never expose the device token in JSON
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Token returns the registered device token, or "" when none is set
func (u *User) Token() string {
	if u == nil || u.PushToken == nil {
		return ""
	}
	return *u.PushToken
}

// Principal is the authenticated caller taken from a verified bearer token
type Principal struct {
	UserID  string `json:"user_id"`
	Role    Role   `json:"role"`
	StoreID string `json:"store_id,omitempty"`
}

// IsStaffOf reports whether the caller works in storeID
func (p *Principal) IsStaffOf(storeID string) bool {
	if p == nil || storeID == "" || p.StoreID != storeID {
		return false
	}
	return p.Role == RolePicker || p.Role == RoleDriver || p.Role == RoleAdmin
}

// ValidRole reports whether r is a known role
func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RolePicker, RoleDriver, RoleAdmin:
		return true
	}
	return false
}
