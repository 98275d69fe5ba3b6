package fido

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// DefaultPINLength is the number of digits in a generated credential PIN.
const DefaultPINLength = 4

// GeneratePIN returns a random numeric PIN of the given length, each digit
// sampled uniformly from crypto/rand.
func GeneratePIN(length int) (string, error) {
	if length <= 0 {
		length = DefaultPINLength
	}
	var sb strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate PIN: %w", err)
		}
		sb.WriteString(d.String())
	}
	return sb.String(), nil
}
