//go:build !unix

package server

import (
	"context"
	"net"
)

func listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		log.Warnw("reuse_port is not supported on this platform", "addr", addr)
	}
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}
