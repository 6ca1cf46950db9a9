package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// NonceBytes is the size of a portal setup nonce (8 hex characters).
	NonceBytes = 4
	// InvitationSuffixBytes keeps GATE_ plus the hex suffix within the
	// platform's 32 character invite name limit.
	InvitationSuffixBytes = 12
)

var randomRead = rand.Read

// GenerateRandomToken generates a random token of specified length
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := randomRead(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateNonce generates a portal setup nonce
func GenerateNonce() (string, error) {
	return GenerateRandomToken(NonceBytes)
}

// GenerateInvitationSuffix generates the random part of an invite link name
func GenerateInvitationSuffix() (string, error) {
	return GenerateRandomToken(InvitationSuffixBytes)
}
