// Package accesscode generates the secret a registrant presents to recover
// their submission.
package accesscode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the fixed number of characters in an access code.
const Length = 10

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generate returns a Length-character code drawn uniformly from A-Z using the
// operating system CSPRNG.
func Generate() (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("could not generate access code: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
