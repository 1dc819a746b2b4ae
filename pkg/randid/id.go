// Package randid generates short random identifiers.
package randid

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var limit = big.NewInt(int64(len(alphabet)))

// Generate returns a random lowercase alphanumeric string of length n.
func Generate(n int) string {
	return Prefixed("", n)
}

// Prefixed returns prefix followed by n random lowercase alphanumeric
// characters.
func Prefixed(prefix string, n int) string {
	if n <= 0 {
		return prefix
	}
	b := make([]byte, len(prefix)+n)
	copy(b, prefix)
	for i := len(prefix); i < len(b); i++ {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("randid: " + err.Error())
		}
		b[i] = alphabet[v.Int64()]
	}
	return string(b)
}
