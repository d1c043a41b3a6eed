package netutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenWithFallback(t *testing.T) {
	first, port, err := ListenWithFallback("127.0.0.1:0", false)
	require.NoError(t, err)
	defer first.Close()
	require.NotZero(t, port)

	busy := fmt.Sprintf("127.0.0.1:%d", port)

	_, _, err = ListenWithFallback(busy, false)
	assert.Error(t, err)

	second, port2, err := ListenWithFallback(busy, true)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, port, port2)
}
