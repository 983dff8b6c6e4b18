package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer      = "growth-ledger"
	referralAudience = "referral"
	adminAudience    = "admin"
	adminTokenTTL    = 12 * time.Hour
)

var ErrSecretNotConfigured = errors.New("token secret not configured")

// ReferralClaims is the payload of a signed referral token
type ReferralClaims struct {
	AppID        string `json:"app_id"`
	ReferralCode string `json:"ref"`
	jwt.RegisteredClaims
}

// AdminClaims is the payload of an operator token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ReferralToken is a verified referral token
type ReferralToken struct {
	AppID        string
	ReferralCode string
	ExpiresAt    time.Time
}

// TokenSigner issues and verifies HS256 tokens with an embedded expiry
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner creates a signer whose referral tokens live for ttl
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the signer's time source
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	s.now = now
	return s
}

// IssueReferralToken signs a token carrying an app's referral code
func (s *TokenSigner) IssueReferralToken(appID, referralCode string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrSecretNotConfigured
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	claims := &ReferralClaims{
		AppID:        appID,
		ReferralCode: referralCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{referralAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt.UTC(), nil
}

// VerifyReferralToken checks signature and expiry and returns the embedded code
func (s *TokenSigner) VerifyReferralToken(tokenString string) (*ReferralToken, error) {
	claims := &ReferralClaims{}
	if err := s.parse(tokenString, claims, referralAudience); err != nil {
		return nil, err
	}
	if claims.ReferralCode == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("referral token is missing required claims")
	}

	return &ReferralToken{
		AppID:        claims.AppID,
		ReferralCode: claims.ReferralCode,
		ExpiresAt:    claims.ExpiresAt.Time.UTC(),
	}, nil
}

// IssueAdminToken signs an operator token for subject
func (s *TokenSigner) IssueAdminToken(subject string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSecretNotConfigured
	}

	issuedAt := s.now()
	claims := &AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{adminAudience},
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(adminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminToken validates an operator token and returns its claims
func (s *TokenSigner) ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if err := s.parse(tokenString, claims, adminAudience); err != nil {
		return nil, err
	}
	if claims.Role != "admin" {
		return nil, fmt.Errorf("token does not carry the admin role")
	}
	return claims, nil
}

func (s *TokenSigner) parse(tokenString string, claims jwt.Claims, audience string) error {
	if len(s.secret) == 0 {
		return ErrSecretNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return fmt.Errorf("invalid token")
	}

	return nil
}
