// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/host"
	"github.com/staranto/shellcache/internal/meta"
	"github.com/staranto/shellcache/internal/worker"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ServeCommandAction fronts the origin with the cache until interrupted.
// SIGHUP reloads the bundle and registers it as a new version.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "serve"

	opts, err := ManagerOptions(ctx, cmd)
	if err != nil {
		return err
	}
	reg := host.NewRegistry()
	front, err := host.NewServer(reg, opts.Origin, nil)
	if err != nil {
		return err
	}
	if _, err := reg.Register(ctx, opts); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reload(ctx, cmd, reg, opts)
			}
		}
	}()

	ln, err := net.Listen("tcp", cmd.String("listen"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	fmt.Fprintf(m.Out(), "serving %s on http://%s\n", opts.Origin, ln.Addr())

	return serveUntilDone(ctx, &http.Server{
		Handler:           front,
		ReadHeaderTimeout: readHeaderTimeout,
	}, ln)
}

// reload registers a fresh manager for the bundle now on disk. A failed
// install leaves the running version in place.
func reload(ctx context.Context, cmd *cli.Command, reg *host.Registry, opts worker.Options) {
	b, err := LoadBundle(cmd)
	if err != nil {
		log.WithError(err).Error("failed to reload bundle")
		return
	}
	opts.Bundle = b
	if _, err := reg.Register(ctx, opts); err != nil {
		log.WithError(err).Error("failed to register new version")
		return
	}
	log.WithField("version", b.Version).Info("new version registered")
}

// serveUntilDone runs srv on ln until ctx is done, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeCommandBuilder constructs the cli.Command for "serve".
func ServeCommandBuilder(meta meta.Meta) *cli.Command {
	flags := NewStoreFlags("serve", meta.Config.Source)
	for _, f := range flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "store" {
			sf.Value = StoreMemory
		}
	}

	return &cli.Command{
		Name:      "serve",
		Usage:     "front the origin with the offline cache",
		UsageText: "shellcache serve --origin URL --bundle FILE [--listen ADDR] [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append(flags, &cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "address to listen on",
			Sources: configSources("serve", "listen", meta.Config.Source, "SHELLCACHE_LISTEN"),
			Value:   "127.0.0.1:8080",
		}),
		Action: ServeCommandAction,
	}
}
