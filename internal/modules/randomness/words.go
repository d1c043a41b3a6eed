// Package randomness holds the randomness providers the raffle engine can draw from.
package randomness

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// wordSpace is 2^256, the range of one random word.
var wordSpace = new(big.Int).Lsh(big.NewInt(1), 256)

var ErrInvalidWord = errors.New("randomness: invalid word")

// NewWords returns n uniformly random 256-bit words.
func NewWords(n uint32) ([]*big.Int, error) {
	if n == 0 {
		n = 1
	}
	out := make([]*big.Int, n)
	for i := range out {
		w, err := rand.Int(rand.Reader, wordSpace)
		if err != nil {
			return nil, fmt.Errorf("read random word: %w", err)
		}
		out[i] = w
	}
	return out, nil
}

// ParseWords decodes decimal (or 0x-prefixed hex) words within [0, 2^256).
func ParseWords(raw []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(raw))
	for i, s := range raw {
		w, ok := new(big.Int).SetString(s, 0)
		if !ok || w.Sign() < 0 || w.Cmp(wordSpace) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWord, s)
		}
		out[i] = w
	}
	return out, nil
}

// FormatWords encodes words as decimal strings.
func FormatWords(words []*big.Int) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.String()
	}
	return out
}
