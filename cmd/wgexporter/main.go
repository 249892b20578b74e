package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wgexporter/internal/config"
	"wgexporter/internal/server"
)

// stringList collects repeatable flags (-n file1 -n file2).
type stringList []string

func (l *stringList) String() string { return fmt.Sprint([]string(*l)) }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config (flags override it)")
		addr        = flag.String("l", "", "exporter bind address")
		port        = flag.Int("p", 0, "exporter port")
		verbose     = flag.Bool("v", false, "verbose logging")
		sudo        = flag.Bool("a", false, "prepend sudo to the wg show commands")
		split       = flag.Bool("s", false, "separate allowed ips and subnets into indexed labels")
		remote      = flag.Bool("r", false, "export peer endpoint and port as labels (if available)")
		handshakeTO = flag.Uint64("t", 0, "handshake timeout in seconds to split peers into seen_recently true/false")
		dumpTO      = flag.Int("timeout", 0, "wg show dump timeout in seconds")
		cfgFiles    stringList
		interfaces  stringList
	)
	flag.Var(&cfgFiles, "n", "WireGuard config file to scan for peer annotations (repeatable)")
	flag.Var(&interfaces, "i", "interface passed to wg show (repeatable; default all)")
	flag.Parse()

	cfg := config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal("load config", err)
		}
		cfg = loaded
	}
	config.ApplyDefaults(&cfg)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "l":
			cfg.Listen = joinListen(*addr, listenPort(cfg.Listen))
		case "p":
			cfg.Listen = joinListen(listenHost(cfg.Listen), strconv.Itoa(*port))
		case "v":
			cfg.Verbose = *verbose
		case "a":
			cfg.PrependSudo = *sudo
		case "s":
			if *split {
				cfg.AllowedIPMode = "split"
			}
		case "r":
			cfg.ExportRemoteEndpoint = *remote
		case "t":
			v := *handshakeTO
			cfg.HandshakeTimeoutSec = &v
		case "timeout":
			cfg.DumpTimeoutSec = *dumpTO
		case "n":
			cfg.ConfigFiles = cfgFiles
		case "i":
			cfg.Interfaces = interfaces
		}
	})

	if err := config.Validate(cfg); err != nil {
		fatal("invalid config", err)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	srv, err := server.New(cfg, nil)
	if err != nil {
		fatal("init server", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("serve", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fatal("shutdown", err)
		}
	}
}

func listenHost(listen string) string {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	return host
}

func listenPort(listen string) string {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "9586"
	}
	return port
}

func joinListen(host, port string) string {
	return net.JoinHostPort(host, port)
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "wgexporter: %s: %v\n", msg, err)
	os.Exit(1)
}
