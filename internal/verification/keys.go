package verification

import (
	"strings"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
)

// Purpose is the identity operation a code gates.
type Purpose string

const (
	PurposeRegister      Purpose = "register"
	PurposeResetPassword Purpose = "reset_password"
	PurposeEditPhone     Purpose = "edit_phone"
	PurposeEditEmail     Purpose = "edit_email"
)

// Channel is the identifier type a code is delivered to.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// Keys are laid out as otp:<namespace>:<kind>:<identifier>. Namespace and
// kind never contain the separator, so an identifier cannot reach another
// namespace or kind whatever characters it carries.
const (
	keyRoot   = "otp"
	keySep    = ":"
	kindCode  = "code"
	kindFlag  = "cfm"
	kindTries = "try"
)

var namespaces = map[Channel]map[Purpose]string{
	ChannelPhone: {
		PurposeRegister:      "reg",
		PurposeResetPassword: "respass",
		PurposeEditPhone:     "edph",
	},
	ChannelEmail: {
		PurposeRegister:      "reg_email",
		PurposeResetPassword: "respass_email",
		PurposeEditEmail:     "edemail",
	},
}

// Normalize maps the edit purposes onto the one matching channel, so clients
// that send edit_phone for an email address land on edit_email.
func Normalize(p Purpose, c Channel) Purpose {
	switch {
	case c == ChannelEmail && p == PurposeEditPhone:
		return PurposeEditEmail
	case c == ChannelPhone && p == PurposeEditEmail:
		return PurposeEditPhone
	}
	return p
}

// Key derives the store key for a code, or for its confirmation flag when
// confirmation is true. Every (purpose, channel) pair has its own namespace.
func Key(p Purpose, c Channel, identifier string, confirmation bool) (string, error) {
	kind := kindCode
	if confirmation {
		kind = kindFlag
	}
	return buildKey(p, c, kind, identifier)
}

func attemptsKey(p Purpose, c Channel, identifier string) (string, error) {
	return buildKey(p, c, kindTries, identifier)
}

func buildKey(p Purpose, c Channel, kind, identifier string) (string, error) {
	byPurpose, ok := namespaces[c]
	if !ok {
		return "", apperr.Newf(apperr.ErrValidation, "unsupported channel %q", c)
	}
	ns, ok := byPurpose[Normalize(p, c)]
	if !ok {
		return "", apperr.Newf(apperr.ErrValidation, "unsupported verification type %q", p)
	}
	return strings.Join([]string{keyRoot, ns, kind, identifier}, keySep), nil
}
