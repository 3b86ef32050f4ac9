package agent

import (
	"context"
	"net"

	"gopwn/config"
)

// IsConnected reports whether a TCP connection to addr can be opened
// within config.DefaultConnectivityTimeout.  It does not depend on any
// agent state.
func IsConnected(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultConnectivityTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
