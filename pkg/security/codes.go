package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns prefix followed by n uppercase alphanumerics, e.g. CMD7QK2M0ZP4X.
func RandomCode(prefix string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive")
	}
	limit := big.NewInt(int64(len(codeCharset)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		out[i] = codeCharset[idx.Int64()]
	}
	return prefix + string(out), nil
}
