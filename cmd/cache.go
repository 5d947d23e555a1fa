package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"threadscope/internal/cache"

	"github.com/spf13/cobra"
)

// cacheCmd groups session cache subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Session cache utilities",
}

// pingCmd pings the configured Redis server.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping Redis and print PONG",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		r := cache.NewRedis(cache.NewRedisClient(cfg.Redis))
		defer r.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		res, err := r.Ping(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res)
		return nil
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Remove cached categories from the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if !strings.EqualFold(cfg.Cache.Backend, "redis") {
			fmt.Fprintln(cmd.OutOrStdout(), "memory cache lives only for one process; nothing to flush")
			return nil
		}

		r := cache.NewRedis(cache.NewRedisClient(cfg.Redis))
		defer r.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.Flush(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "flushed")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(pingCmd, flushCmd)
	rootCmd.AddCommand(cacheCmd)
}
