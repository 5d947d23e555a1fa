package cmd

import (
	"context"
	"os"
	"os/signal"

	"threadscope/internal/model"

	"github.com/spf13/cobra"
)

var (
	postsSearch string
	postsMode   string
)

var postsCmd = &cobra.Command{
	Use:   "posts [path]",
	Short: "List posts at a path (e.g. /r/golang)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := model.ParseListingMode(postsMode)
		if err != nil {
			return err
		}
		loc := model.Location{Path: "/", SearchTerm: postsSearch, Mode: mode}
		if len(args) == 1 {
			loc.Path = args[0]
		}

		s, err := newSession(GetConfig())
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		o := s.orchestrator()
		stop := runLoop(ctx, o)
		defer stop()

		posts, err := settle(ctx, s, o, o.Posts(), "posts", func() { o.SetLocation(loc) })
		if err != nil {
			return err
		}
		printPosts(cmd.OutOrStdout(), posts)
		return nil
	},
}

func init() {
	postsCmd.Flags().StringVarP(&postsSearch, "search", "s", "", "search term")
	postsCmd.Flags().StringVarP(&postsMode, "mode", "m", "", "listing mode (hot, new, top, rising, controversial, best)")
	rootCmd.AddCommand(postsCmd)
}
