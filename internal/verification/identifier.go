package verification

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeIdentifier applies the same canonical form Send and Verify use, so
// gated operations look up the flag under the identical key.
func NormalizeIdentifier(c Channel, identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if c == ChannelEmail {
		return strings.ToLower(identifier)
	}
	return identifier
}

// ValidateIdentifier rejects values that are not a phone number or an email
// address for their channel. identifier must already be normalized.
func ValidateIdentifier(c Channel, identifier string) error {
	label := channelLabel(c)
	if identifier == "" {
		return apperr.Validation(label + " is required")
	}
	switch c {
	case ChannelPhone:
		if validate.Var(identifier, "phone") != nil {
			return apperr.Validation("Phone must be a valid phone number")
		}
	case ChannelEmail:
		if validate.Var(identifier, "email") != nil {
			return apperr.Validation("Email must be a valid email address")
		}
	default:
		return apperr.Newf(apperr.ErrValidation, "unsupported channel %q", c)
	}
	return nil
}
