package main

import (
	"fmt"
	"net"

	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/playerauction/config"
)

func listen(cfg config.ServerConfig) (net.Listener, error) {
	switch cfg.Network {
	case "vsock":
		l, err := vsock.Listen(cfg.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	case "tcp", "":
		l, err := net.Listen("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown server network %q", cfg.Network)
	}
}
