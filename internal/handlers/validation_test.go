package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	appValidator "github.com/feelize/platform/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	type payload struct {
		Email        string `json:"email" validate:"required,email"`
		ReferralCode string `json:"referral_code" validate:"omitempty,referralcode"`
		AccessLevel  string `json:"access_level" validate:"required,accesslevel"`
	}

	err := appValidator.ValidateStruct(payload{ReferralCode: "no", AccessLevel: "root"})
	msg := formatValidationError(err)

	require.Contains(t, msg, "email is required")
	require.Contains(t, msg, "referral code must be 4-12 letters or digits")
	require.Contains(t, msg, "access level must be one of client, affiliate, engineer, admin")
}

func TestFormatValidationErrorFallback(t *testing.T) {
	require.Equal(t, "invalid request payload", formatValidationError(nil))
}
