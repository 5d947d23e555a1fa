package cmd

import (
	"context"
	"time"

	"threadscope/internal/fetch"
	"threadscope/internal/model"
	"threadscope/internal/retry"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the default subreddits",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(GetConfig())
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cats, err := getCategories(ctx, s, s.categories())
		if err != nil {
			return err
		}
		printCategories(cmd.OutOrStdout(), cats)
		return nil
	},
}

func getCategories(ctx context.Context, s *session, cc *fetch.CategoryCache) ([]model.Category, error) {
	var cats []model.Category
	err := retry.Do(ctx, "categories", func() error {
		var err error
		cats, err = cc.Get(ctx)
		if err != nil && !fetch.Classify(err).Retryable() {
			return retry.Permanent(err)
		}
		return err
	}, s.retryConfig())
	return cats, err
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
