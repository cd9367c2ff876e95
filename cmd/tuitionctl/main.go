// Command tuitionctl runs backup and maintenance operations against the
// configured store without going through the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tuitiondesk/internal/application"
	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

func main() {
	// Unlike the server, explicit environment wins over .env here.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// stdout may carry an archive, so logs go to stderr.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg, func(ctx context.Context) (*application.App, error) {
		return application.Open(ctx, cfg)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
