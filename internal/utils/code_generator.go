package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
)

// Uppercase alphanumerics without the look-alikes 0/O and 1/I.
const invitationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	InvitationCodePrefix = "INV"
	InvitationCodeLength = 6
	referralCodeBytes    = 6
)

// GenerateInvitationCode creates a single-use code in the format "INV-XXXXXX"
func GenerateInvitationCode() (string, error) {
	suffix := make([]byte, InvitationCodeLength)
	max := big.NewInt(int64(len(invitationAlphabet)))
	for i := range suffix {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invitation code: %w", err)
		}
		suffix[i] = invitationAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("%s-%s", InvitationCodePrefix, suffix), nil
}

// GenerateReferralCode creates a short base58 code that is safe to share in links
func GenerateReferralCode() (string, error) {
	b := make([]byte, referralCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	return base58.Encode(b), nil
}
