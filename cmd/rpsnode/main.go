// Command rpsnode runs a single peer-sampling node over QUIC.
//
// Each line read from standard input is broadcast to the overlay,
// and every broadcast received is printed to standard output.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordian-engine/rps"
	"github.com/gordian-engine/rps/rcyclon"
	"github.com/gordian-engine/rps/roverlay"
	"github.com/gordian-engine/rps/rquic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
)

const (
	defaultListen   = "127.0.0.1:7400"
	defaultCoef     = 0.5
	defaultInterval = 10 * time.Second
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[rpsnode] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "rpsnode"
	app.Usage = "run a random peer sampling node and broadcast stdin lines"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Value: defaultListen,
			Usage: "UDP host:port to listen on",
		},
		cli.StringFlag{
			Name: "advertise",
			Usage: "host:port other nodes use to reach this one; " +
				"defaults to the listen address, and is required " +
				"when that has no specific host",
		},
		cli.StringSliceFlag{
			Name: "contact",
			Usage: "host:port of a node to join through; " +
				"may be specified multiple times",
		},
		cli.Float64Flag{
			Name:  "coef",
			Value: defaultCoef,
			Usage: "fraction of the view offered in each exchange",
		},
		cli.DurationFlag{
			Name:  "interval",
			Value: defaultInterval,
			Usage: "time between exchanges",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: rcyclon.DefaultExchangeTimeout,
			Usage: "time to wait for an exchange reply or a connection",
		},
		cli.StringFlag{
			Name:  "metrics",
			Usage: "if set, serve prometheus metrics on this host:port",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	listen := c.String("listen")
	advertise, err := advertiseAddr(listen, c.String("advertise"))
	if err != nil {
		return err
	}

	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return fmt.Errorf("failed to resolve listen address: %w", err)
	}
	uc, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer uc.Close()

	host, _, _ := net.SplitHostPort(advertise)
	cert, err := rquic.SelfSignedCertificate([]string{host}, 7*24*time.Hour)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	timeout := c.Duration("timeout")
	n, err := rps.NewNode(ctx, log, rps.NodeConfig{
		UDPConn: uc,
		TLS: &tls.Config{
			Certificates: []tls.Certificate{cert},

			// Every node presents an ephemeral self-signed certificate,
			// so there is no authority to verify against.
			InsecureSkipVerify: true,
		},
		AdvertiseAddr: advertise,

		UsedCoef:         c.Float64("coef"),
		ExchangeInterval: c.Duration("interval"),
		ExchangeTimeout:  timeout,

		Registerer: reg,
	})
	if err != nil {
		return err
	}

	if addr := c.String("metrics"); addr != "" {
		go serveMetrics(ctx, log.With("sys", "metrics"), addr, reg)
	}

	n.OnBroadcast(func(b roverlay.Broadcast) {
		fmt.Printf("%s> %s\n", b.Origin, b.Payload)
	})

	for _, contact := range c.StringSlice("contact") {
		if err := n.Connect(ctx, contact, timeout); err != nil {
			log.Warn("Failed to connect to contact", "contact", contact, "err", err)
			continue
		}
		log.Info("Connected to contact", "contact", contact)
	}

	go broadcastLines(ctx, log, n)

	<-ctx.Done()
	log.Info("Shutting down", "cause", context.Cause(ctx))

	n.Wait()
	return nil
}

// advertiseAddr returns the address the node is known by.
// It falls back to listen when advertise is empty,
// but only if listen names a host other nodes could dial.
func advertiseAddr(listen, advertise string) (string, error) {
	addr := advertise
	if addr == "" {
		addr = listen
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid advertise address %q: %w", addr, err)
	}
	if port == "" || port == "0" {
		return "", fmt.Errorf("advertise address %q needs a fixed port", addr)
	}
	if host == "" {
		if advertise == "" {
			return "", fmt.Errorf(
				"--advertise is required when the listen address %q has no host", listen,
			)
		}
		return "", fmt.Errorf("advertise address %q has no host", addr)
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		if advertise == "" {
			return "", fmt.Errorf(
				"--advertise is required when listening on unspecified address %q", listen,
			)
		}
		return "", fmt.Errorf("advertise address %q is unspecified", addr)
	}

	return addr, nil
}

// broadcastLines broadcasts every line of standard input until EOF.
func broadcastLines(ctx context.Context, log *slog.Logger, n *rps.Node) {
	s := bufio.NewScanner(os.Stdin)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := n.SendBroadcast(ctx, append([]byte(nil), line...)); err != nil {
			log.Warn("Failed to broadcast", "err", err)
		}
	}
	if err := s.Err(); err != nil && ctx.Err() == nil {
		log.Info("Stopped reading standard input", "err", err)
	}
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr string, reg *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("Metrics server failed", "err", err)
	}
}
