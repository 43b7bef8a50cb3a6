// Command liasisd hosts the control-plane core: it owns the in-memory BT
// domain, binds the wire protocol's listener, and runs the BTM event loop.
// Structured the way docker-compose/containerd's daemon() wires a
// supervisor and a gRPC server off one *cli.Context, adapted to
// codegangsta/cli's single-command-app shape rather than containerd's own.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/cihub/seelog"
	"github.com/codegangsta/cli"

	"github.com/sh01/liasis/internal/btm"
	"github.com/sh01/liasis/internal/domain"
)

func main() {
	app := cli.NewApp()
	app.Name = "liasisd"
	app.Usage = "BitTorrent control-plane daemon"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen", Value: "tcp://127.0.0.1:7412", Usage: "proto://address the control endpoint listens on (tcp:// or unix://)"},
		cli.IntFlag{Name: "clients", Value: 1, Usage: "number of BTClients the domain starts with"},
		cli.DurationFlag{Name: "liveness-interval", Value: 60 * time.Second, Usage: "interval between liveness NOOP frames per connection"},
		cli.DurationFlag{Name: "tick-interval", Value: 1 * time.Second, Usage: "interval between synthetic throughput ticks"},
		cli.DurationFlag{Name: "deadlock-timeout", Value: 15 * time.Second, Usage: "event loop heartbeat staleness before the watchdog panics"},
		cli.IntFlag{Name: "dht-port", Value: 0, Usage: "UDP port for DHT peer discovery; 0 disables it"},
		cli.StringFlag{Name: "redis-addr", Value: "", Usage: "redis address for throughput history persistence; empty keeps it in-process"},
		cli.StringFlag{Name: "log-config", Value: "", Usage: "path to a seelog XML config file; empty uses a built-in console config"},
		cli.StringFlag{Name: "config", Value: "", Usage: "path to an optional JSON config file merged under the flags above"},
	}
	app.Action = runDaemon

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(c *cli.Context) error {
	cfg, err := configFromContext(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := setupLogging(cfg.logConfig); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer log.Flush()

	network, addr, err := splitListenSpec(cfg.listen)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	l, err := net.Listen(network, addr)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("bind failed: %s", err), 1)
	}
	defer l.Close()

	history := buildHistoryStore(cfg.redisAddr)
	peers := buildPeerSource(cfg.dhtPort)
	d := domain.NewMemoryDomain(cfg.clientCount, history, peers)

	manager := btm.New(d, btm.Config{
		LivenessInterval: cfg.livenessEvery,
		TickInterval:     cfg.tickEvery,
		DeadlockTimeout:  cfg.deadlockTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 8)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go handleSignals(sig, cancel, manager, d, cfg)

	log.Infof("liasisd: listening on %s (%s), %d clients", addr, network, cfg.clientCount)
	if err := manager.Serve(ctx, l); err != nil && err != context.Canceled {
		log.Errorf("liasisd: event loop exited: %s", err)
	}
	return nil
}

// handleSignals drives shutdown on SIGINT/SIGTERM and a config reload on
// SIGHUP, the trigger for the client-set shrink case that produces
// INVALIDCLIENTCOUNT and per-subscription UNSUBSCRIBE frames. The reload
// re-reads --config (if one was given) so editing its "clients" field and
// sending SIGHUP is how an operator actually shrinks the client set; with
// no config file, SIGHUP reconfigures to the same count it already runs
// with, which is a deliberate no-op rather than a way to change it.
func handleSignals(sig <-chan os.Signal, cancel context.CancelFunc, manager *btm.BTM, d *domain.MemoryDomain, cfg *daemonConfig) {
	for s := range sig {
		switch s {
		case syscall.SIGHUP:
			newCount := reloadClientCount(cfg)
			log.Infof("liasisd: SIGHUP received, reloading client configuration (clients=%d)", newCount)
			d.Reconfigure(newCount)
		default:
			log.Infof("liasisd: %s received, shutting down", s)
			manager.Stop()
			cancel()
			return
		}
	}
}

func splitListenSpec(spec string) (network, addr string, err error) {
	parts := strings.SplitN(spec, "://", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("bad listen address %q, expected proto://address", spec)
	}
	switch parts[0] {
	case "tcp", "unix":
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("unsupported listen protocol %q", parts[0])
	}
}
