// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/urfave/cli/v3"

	"github.com/staranto/shellcache/internal/config"
	"github.com/staranto/shellcache/internal/host"
	"github.com/staranto/shellcache/internal/meta"
)

// DefaultServer is where "message" looks for a running "serve".
const DefaultServer = "http://127.0.0.1:8080"

// MessageCommandAction posts a control message to a running server.
func MessageCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])
	config.Config.Namespace = "message"

	msg := cmd.Args().First()
	if msg == "" {
		return errors.New("a message is required, e.g. skipWaiting or downloadOffline")
	}
	if err := PostMessage(ctx, cleanhttp.DefaultClient(), cmd.String("server"), msg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(m.Out(), "delivered %s\n", msg)
	return err
}

// PostMessage delivers msg to the server at base.
func PostMessage(ctx context.Context, client *http.Client, base, msg string) error {
	url := strings.TrimSuffix(base, "/") + host.MessagePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server refused message (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// MessageCommandBuilder constructs the cli.Command for "message".
func MessageCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "message",
		Usage:     "post a control message to a running server",
		UsageText: "shellcache message [--server URL] skipWaiting|downloadOffline",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "base URL of the running server",
				Sources: configSources("message", "server", meta.Config.Source, "SHELLCACHE_SERVER"),
				Value:   DefaultServer,
				Validator: func(value string) error {
					return FlagValidators(value, JammedFlagValidator)
				},
			},
		},
		Action: MessageCommandAction,
	}
}
