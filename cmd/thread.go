package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"threadscope/internal/digest"
	"threadscope/internal/fetch"
	"threadscope/internal/model"

	"github.com/spf13/cobra"
)

var (
	threadExpand    int
	threadSummarize bool
	threadOut       string
)

var threadCmd = &cobra.Command{
	Use:   "thread <permalink>",
	Short: "Show a post and its comment tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		s, err := newSession(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		o := s.orchestrator()
		stop := runLoop(ctx, o)
		defer stop()

		th, err := settle(ctx, s, o, o.Thread(), "thread", func() { o.OpenThread(args[0]) })
		if err != nil {
			return err
		}
		th = expandStubs(ctx, o, th, threadExpand)

		var summary string
		if threadSummarize {
			sum, err := s.summarizer()
			if err != nil {
				return err
			}
			if sum == nil {
				slog.Warn("thread: --summarize needs openai.api_key")
			} else if summary, err = sum.SummarizeThread(ctx, th, cfg.OpenAI.Language); err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
		}

		w := cmd.OutOrStdout()
		printThread(w, th)
		if summary != "" {
			fmt.Fprintf(w, "\nSummary: %s\n", summary)
		}

		if threadOut != "" {
			now := time.Now()
			out, err := digest.Render(digest.FromThread(th, summary, now))
			if err != nil {
				return err
			}
			path := digest.ExpandVars(threadOut, th.Post.ID, now)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
				return err
			}
			slog.Info("thread: digest written", "path", path)
		}
		return nil
	},
}

// expandStubs resolves up to n stubs in tree order. A failed expansion stops
// early and keeps the tree as it was.
func expandStubs(ctx context.Context, o *fetch.Orchestrator, th model.Thread, n int) model.Thread {
	for i := 0; i < n; i++ {
		stubs := model.Stubs(th.Comments)
		if len(stubs) == 0 {
			break
		}
		after := o.Thread().State().RequestID
		o.Expand(stubs[0].ID)
		st, err := await(ctx, o.Thread(), after)
		if err != nil {
			break
		}
		if st.Status == fetch.StatusError {
			slog.Warn("thread: expand failed", "stub", stubs[0].ID, "kind", st.Kind.String(), "error", st.Err)
			break
		}
		th = st.Data
	}
	return th
}

func init() {
	threadCmd.Flags().IntVar(&threadExpand, "expand", 0, "expand up to N continuation stubs")
	threadCmd.Flags().BoolVar(&threadSummarize, "summarize", false, "summarize the thread with OpenAI")
	threadCmd.Flags().StringVarP(&threadOut, "out", "o", "", "write a markdown digest (supports {.PostID}, {.CurrentDate})")
	rootCmd.AddCommand(threadCmd)
}
