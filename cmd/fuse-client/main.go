// cardfs FUSE client
//
// Mounts a card listing as a read-only directory tree:
// - Directories are DFs, files are EFs, named by their 4-digit file ID
// - Object ID and access codes are exposed as extended attributes
// - The listing is re-enumerated on a timer when -refresh is set
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cardcontact/cardfs/internal/app"
	"github.com/cardcontact/cardfs/internal/config"
	"github.com/cardcontact/cardfs/internal/fuse"
	"github.com/cardcontact/cardfs/internal/logging"
	"github.com/cardcontact/cardfs/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.MountPoint, "mount", cfg.MountPoint, "Mount point for the card filesystem")
	flag.DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "Listing refresh interval (0 to disable)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	if cfg.MountPoint == "" {
		fmt.Fprintf(os.Stderr, "Error: -mount is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Info("cardfs FUSE client (read-only)",
		logging.String("source", cfg.Source),
		logging.String("mount", cfg.MountPoint),
		logging.Int("cache_increment", cfg.CacheIncrement),
		logging.Int("cache_limit", cfg.CacheLimit),
		logging.Duration("refresh", cfg.RefreshInterval))

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logging.Info("metrics server listening", logging.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, logging.Middleware(mux)); err != nil {
				logging.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, closer, err := app.OpenSession(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to open card", logging.Err(err))
	}
	defer closer()

	cardFS := fuse.New(session, fuse.Config{RefreshInterval: cfg.RefreshInterval}, logging.Named("fuse"))

	logging.Info("enumerating card...")
	if err := cardFS.Refresh(); err != nil {
		logging.Fatal("failed to enumerate card", logging.Err(err))
	}

	server, err := cardFS.Mount(cfg.MountPoint)
	if err != nil {
		logging.Fatal("mount failed", logging.Err(err))
	}

	cardFS.StartRefreshLoop(ctx)

	logging.Info("filesystem mounted", logging.String("mount", cfg.MountPoint))
	logging.Info("press Ctrl+C to unmount and exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("unmounting...")
	cardFS.StopRefreshLoop()
	if err := server.Unmount(); err != nil {
		logging.Warn("unmount failed", logging.String("mount", cfg.MountPoint), logging.Err(err))
	}
	logging.Info("done")
}
