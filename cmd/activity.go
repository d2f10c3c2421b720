/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/internal/mq"
	"github.com/programhub/apiserver/types"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Inspect the activity feed",
}

var activityWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print activity log entries as they are published",
	Long: `Subscribes to the configured broker and prints one line per activity
log entry until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg.Broker)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("no broker configured, set BROKER to rabbitmq or pubsub")
		}
		feed := mq.NewActivityFeed(backend, cfg.Broker.Topic)
		defer feed.Close()

		out := cmd.OutOrStdout()
		return feed.Watch(ctx, func(entry types.UpdateLog) error {
			if _, err := fmt.Fprintf(out, "%s [%s] %s user=%s %s\n",
				entry.CreatedAt.Format(time.RFC3339), entry.Type, entry.Message, entry.UserID, entry.Metadata); err != nil {
				return fmt.Errorf("write entry: %w", err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityWatchCmd)
}
