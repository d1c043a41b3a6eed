package netutil

import (
	"fmt"
	"net"
)

// ListenWithFallback listens on addr (host:port or :port). When the port is
// taken and fallback is allowed, it binds an ephemeral port on the same host.
// The returned int is the port actually bound.
func ListenWithFallback(addr string, fallback bool) (net.Listener, int, error) {
	lis, err := net.Listen("tcp", addr)
	if err == nil {
		return lis, lis.Addr().(*net.TCPAddr).Port, nil
	}
	if !fallback {
		return nil, 0, fmt.Errorf("listen on %s: %w", addr, err)
	}

	host, _, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return nil, 0, fmt.Errorf("listen on %s: %w", addr, err)
	}
	lis, fbErr := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if fbErr != nil {
		return nil, 0, fmt.Errorf("listen on %s (%v) and fallback port: %w", addr, err, fbErr)
	}
	return lis, lis.Addr().(*net.TCPAddr).Port, nil
}
