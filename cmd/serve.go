package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sheetchat/internal/config"
	"github.com/KaramelBytes/sheetchat/internal/metrics"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
	"github.com/KaramelBytes/sheetchat/internal/server"
	"github.com/KaramelBytes/sheetchat/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over HTTP",
	Example: `  sheetchat serve --addr :8080
  SHEETCHAT_ALLOWED_ORIGINS=http://localhost:5173 sheetchat serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		completer, err := newCompleter(cfg)
		if err != nil {
			return err
		}
		ex := sandbox.New(execTimeout(cfg), logger)

		ttl := session.DefaultIdleTTL
		if cfg.SessionTTLMin > 0 {
			ttl = time.Duration(cfg.SessionTTLMin) * time.Minute
		}
		sessions := session.NewManager(ttl, func(id string) *session.Session {
			return session.New(completer, ex,
				session.WithLogger(logger.With("session", id)),
				session.WithObserver(metrics.Recorder{}),
			)
		})
		sessions.Start()
		defer sessions.Stop()

		addr := cfg.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		metrics.BuildInfo.WithLabelValues(Version).Set(1)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(server.Config{
			Addr:           addr,
			AllowedOrigins: cfg.AllowedOrigins,
			TurnTimeout:    turnTimeout(cfg),
		}, sessions, logger)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}

// turnTimeout covers every completion attempt plus one snippet run.
func turnTimeout(c *cfgpkg.Global) time.Duration {
	attempts := c.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return time.Duration(attempts*c.HTTPTimeoutSec)*time.Second + execTimeout(c)
}
