// Command timeclockctl runs operator tasks against the time clock database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/db"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

var rootCmd = &cobra.Command{
	Use:           "timeclockctl",
	Short:         "Operator tools for the staff time clock",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// connect loads the environment config and opens the database.
func connect(ctx context.Context) (config.Config, *db.Postgres, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	pg, err := db.New(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, pg, nil
}
