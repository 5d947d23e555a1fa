package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"threadscope/internal/config"
	"threadscope/internal/fetch"
	"threadscope/internal/model"
	"threadscope/worker"

	"github.com/spf13/cobra"
)

const watchHelp = `commands:
  go <path> [mode]   navigate the post list (e.g. go /r/golang top)
  search <term>      search within the current path
  open <n|permalink> open the n-th listed post, or a permalink
  more [stub]        expand a continuation stub (first one by default)
  retry              re-issue failed requests
  refresh            reload the post list
  cats               list categories
  quit`

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Interactive viewer driven by commands on stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		s, err := newSession(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		o := s.orchestrator()
		v := &viewer{out: cmd.OutOrStdout(), o: o, cats: s.categories(), s: s}
		v.subscribe()

		ws := []worker.Worker{o}
		if interval := config.Duration(cfg.Viewer.RefreshInterval, 0); interval > 0 {
			ws = append(ws, &worker.Refresher{Target: o, Interval: interval})
		}
		if cfg.Metrics.Addr != "" {
			ws = append(ws, &worker.MetricsServer{Addr: cfg.Metrics.Addr, Gatherer: s.registry})
		}
		mgrErr := make(chan error, 1)
		go func() { mgrErr <- worker.NewManager(ws...).Start(ctx) }()

		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		v.navigate(model.Location{Path: path})
		fmt.Fprintln(v.out, watchHelp)

		lines := make(chan string)
		go readLines(cmd.InOrStdin(), lines)
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case line, ok := <-lines:
				if !ok || !v.handle(ctx, line) {
					break loop
				}
			}
		}
		cancel()
		return <-mgrErr
	},
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// viewer renders published states and keeps what the commands refer back to.
type viewer struct {
	out  io.Writer
	o    *fetch.Orchestrator
	cats *fetch.CategoryCache
	s    *session

	mu    sync.Mutex
	loc   model.Location
	posts []model.Post
}

func (v *viewer) subscribe() {
	v.o.Posts().Subscribe(func(st fetch.State[[]model.Post]) {
		switch st.Status {
		case fetch.StatusLoading:
			fmt.Fprintln(v.out, "… loading posts")
		case fetch.StatusSuccess:
			v.mu.Lock()
			v.posts = st.Data
			v.mu.Unlock()
			printPosts(v.out, st.Data)
		case fetch.StatusError:
			fmt.Fprintf(v.out, "! posts: %s (%v)%s\n", st.Kind, st.Err, retryHint(st.Kind))
		}
	})
	v.o.Thread().Subscribe(func(st fetch.State[model.Thread]) {
		switch st.Status {
		case fetch.StatusLoading:
			fmt.Fprintln(v.out, "… loading thread")
		case fetch.StatusSuccess:
			printThread(v.out, st.Data)
		case fetch.StatusError:
			fmt.Fprintf(v.out, "! thread: %s (%v)%s\n", st.Kind, st.Err, retryHint(st.Kind))
		}
	})
}

func retryHint(k fetch.ErrorKind) string {
	if k.Retryable() {
		return ", type 'retry'"
	}
	return ""
}

func (v *viewer) navigate(loc model.Location) {
	v.mu.Lock()
	v.loc = loc
	v.mu.Unlock()
	v.o.SetLocation(loc)
}

// handle runs one command line and reports whether to keep going.
func (v *viewer) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	v.mu.Lock()
	loc := v.loc
	posts := v.posts
	v.mu.Unlock()

	switch fields[0] {
	case "go":
		if len(fields) < 2 {
			fmt.Fprintln(v.out, "usage: go <path> [mode]")
			return true
		}
		next := model.Location{Path: fields[1]}
		if len(fields) > 2 {
			mode, err := model.ParseListingMode(fields[2])
			if err != nil {
				fmt.Fprintln(v.out, err)
				return true
			}
			next.Mode = mode
		}
		v.navigate(next)
	case "search":
		loc.SearchTerm = arg
		v.navigate(loc)
	case "open":
		if arg == "" {
			fmt.Fprintln(v.out, "usage: open <n|permalink>")
			return true
		}
		if n, err := strconv.Atoi(arg); err == nil {
			if n < 1 || n > len(posts) {
				fmt.Fprintf(v.out, "no post %d\n", n)
				return true
			}
			arg = posts[n-1].PermalinkURL
		}
		v.o.OpenThread(arg)
	case "more":
		th, ok := v.o.Thread().Stale()
		if !ok {
			fmt.Fprintln(v.out, "no thread open")
			return true
		}
		if arg == "" {
			stubs := model.Stubs(th.Comments)
			if len(stubs) == 0 {
				fmt.Fprintln(v.out, "nothing to expand")
				return true
			}
			arg = stubs[0].ID
		}
		v.o.Expand(arg)
	case "retry":
		v.o.Retry()
	case "refresh":
		v.o.Refresh()
	case "cats":
		go func() {
			cats, err := getCategories(ctx, v.s, v.cats)
			if err != nil {
				slog.Warn("watch: categories", "error", err)
				return
			}
			printCategories(v.out, cats)
		}()
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(v.out, watchHelp)
	default:
		fmt.Fprintf(v.out, "unknown command %q\n", fields[0])
	}
	return true
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
