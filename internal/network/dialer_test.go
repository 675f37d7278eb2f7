// internal/network/dialer_test.go
package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialTCPContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	cfg := NewDialerConfig()
	cfg.ForceNoDelay = true
	conn, err := DialTCPContext(context.Background(), "tcp", listener.Addr().String(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, isTCP := conn.(*net.TCPConn)
	assert.True(t, isTCP)
}

func TestDialTCPContext_Failures(t *testing.T) {
	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := DialTCPContext(ctx, "tcp", "127.0.0.1:1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tcp dial failed")
	})

	t.Run("refused connection", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := listener.Addr().String()
		listener.Close()

		cfg := &DialerConfig{Timeout: time.Second}
		_, err = DialTCPContext(context.Background(), "tcp", addr, cfg)
		assert.Error(t, err)
	})
}
