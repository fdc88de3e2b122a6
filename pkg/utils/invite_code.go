package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteCodeLength is the number of characters in a group invite code.
const InviteCodeLength = 6

// GenerateInviteCode returns a random upper-case alphanumeric code.
func GenerateInviteCode() (string, error) {
	var b strings.Builder
	b.Grow(InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode trims and upper-cases user supplied codes.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
