package dto

type RegisterPushTokenRequest struct {
	Token string `json:"token" binding:"required,min=20,max=4096,pushtoken"`
}
