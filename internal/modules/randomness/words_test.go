package randomness

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWords(t *testing.T) {
	ws, err := NewWords(3)
	require.NoError(t, err)
	require.Len(t, ws, 3)
	for _, w := range ws {
		assert.True(t, w.Sign() >= 0)
		assert.True(t, w.Cmp(wordSpace) < 0)
	}

	ws, err = NewWords(0)
	require.NoError(t, err)
	assert.Len(t, ws, 1)
}

func TestParseWords(t *testing.T) {
	ws, err := ParseWords([]string{"17", "0xff"})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(17), ws[0])
	assert.Equal(t, big.NewInt(255), ws[1])
	assert.Equal(t, []string{"17", "255"}, FormatWords(ws))

	for _, bad := range []string{"-1", "abc", "", new(big.Int).Set(wordSpace).String()} {
		_, err := ParseWords([]string{bad})
		assert.ErrorIs(t, err, ErrInvalidWord, bad)
	}
}
