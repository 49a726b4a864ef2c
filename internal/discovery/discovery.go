package discovery

/*------------------------------------------------------------------
 *
 * Purpose:	Announce the acoustic gateway on the Ethernet LAN using
 *		DNS-SD, so operators can find a bridge node without
 *		typing in its IP address by hand.
 *
 * Description:	Pure-Go github.com/brutella/dnssd, same choice as the
 *		one it's grounded on: cross-platform mDNS/DNS-SD
 *		announcement without a system daemon or C library.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type this node advertises.
const ServiceType = "_acoustic-gw._tcp"

// defaultServiceName returns "acoustilink on <hostname>", or just
// "acoustilink" if the hostname can't be obtained.
func defaultServiceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "acoustilink"
	}
	hostname, _, _ = strings.Cut(hostname, ".")
	return "acoustilink on " + hostname
}

// Announce advertises this node's gateway service on port, under name
// (or a generated default if name is empty). It returns once the
// service is registered; the responder keeps running in the
// background until ctx is canceled.
func Announce(ctx context.Context, name string, port int) error {
	logger := log.Default().WithPrefix("discovery")
	if name == "" {
		name = defaultServiceName()
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return err
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return err
	}

	if _, err := responder.Add(svc); err != nil {
		return err
	}

	logger.Info("announcing acoustic gateway", "name", name, "port", port)
	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("DNS-SD responder stopped", "err", err)
		}
	}()
	return nil
}
