// Package discovery announces the KISS-over-TCP endpoint via mDNS/DNS-SD
// so clients on the local network can find this station without a
// hand-typed address (ground: dns_sd.go).
package discovery

import (
	"context"
	"fmt"
	"os"

	"github.com/brutella/dnssd"

	"github.com/kb9xyz/tncd/internal/logging"
)

// ServiceType is the DNS-SD service type this station advertises.
const ServiceType = "_kiss-tnc._tcp"

// Announce registers name (or a hostname-derived default) on port and
// starts responding to mDNS queries in a background goroutine. Callers
// cancel ctx to stop responding.
func Announce(ctx context.Context, name string, port int) error {
	if name == "" {
		name = defaultServiceName()
	}
	logger := logging.For(logging.AreaStation)

	cfg := dnssd.Config{Name: name, Type: ServiceType, Port: port}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("discovery: create service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("discovery: create responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("discovery: add service: %w", err)
	}

	logger.Info("announcing KISS TCP", "port", port, "name", name)
	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("responder stopped", "err", err)
		}
	}()
	return nil
}

func defaultServiceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "tncd"
	}
	return "tncd-" + host
}
