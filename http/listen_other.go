//go:build !linux

package http

import (
	"context"
	"net"
)

// listen binds addr. ReusePort is a no-op off Linux.
func listen(ctx context.Context, network, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{}
	return lc.Listen(ctx, network, addr)
}
