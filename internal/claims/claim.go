// Package claims decodes the opaque claim string a client submits into the
// one shape the rest of the engine works with.
package claims

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

type Kind int

const (
	KindNone Kind = iota
	KindInvitationCode
	KindReferralToken
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindInvitationCode:
		return "invitation_code"
	case KindReferralToken:
		return "referral_token"
	case KindInvalid:
		return "invalid"
	default:
		return "none"
	}
}

const (
	InvitationPrefix     = "INV"
	InvitationCodeLength = 6
	MaxClaimLength       = 4096
)

var (
	invitationCodeRegex = regexp.MustCompile(`^INV-[A-Z0-9]{6}$`)
	// header.payload.signature, base64url segments
	tokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

	ErrMalformedClaim = errors.New("malformed claim")
)

// Claim is the decoded form of a client claim. Exactly one of Code or Token
// is set, according to Kind.
type Claim struct {
	Kind  Kind
	Code  string
	Token string
}

// Parse classifies raw once, at the boundary. Empty input yields KindNone.
// Input that cannot be a claim of any kind (too long, control characters)
// is an error; input that is well-formed but neither an invitation code nor
// a token yields KindInvalid, which callers ignore.
func Parse(raw string) (Claim, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Claim{Kind: KindNone}, nil
	}
	if len(trimmed) > MaxClaimLength {
		return Claim{}, ErrMalformedClaim
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return Claim{}, ErrMalformedClaim
		}
	}

	if code := strings.ToUpper(trimmed); invitationCodeRegex.MatchString(code) {
		return Claim{Kind: KindInvitationCode, Code: code}, nil
	}
	if tokenRegex.MatchString(trimmed) {
		return Claim{Kind: KindReferralToken, Token: trimmed}, nil
	}
	return Claim{Kind: KindInvalid}, nil
}
