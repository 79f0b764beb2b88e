package notification

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// PushTokenTag is the validation tag for device tokens
const PushTokenTag = "pushtoken"

var (
	pushTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]+$`)
	tokenValidate    = newTokenValidator()
)

func newTokenValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterPushToken(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterPushToken adds the pushtoken tag to v
func RegisterPushToken(v *validator.Validate) error {
	return v.RegisterValidation(PushTokenTag, func(fl validator.FieldLevel) bool {
		return pushTokenPattern.MatchString(fl.Field().String())
	})
}

// ValidPushToken reports whether token is structurally a device token
func ValidPushToken(token string) bool {
	return tokenValidate.Var(token, "required,min=20,max=4096,"+PushTokenTag) == nil
}
