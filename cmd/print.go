package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"threadscope/internal/model"

	"github.com/dustin/go-humanize"
)

func printPosts(w io.Writer, posts []model.Post) {
	for i, p := range posts {
		fmt.Fprintf(w, "%3d. %s\n", i+1, p.Title)
		fmt.Fprintf(w, "     %s · %s points · %s comments · u/%s · %s",
			p.Subreddit,
			humanize.Comma(int64(p.Score)),
			humanize.Comma(int64(p.NumComments)),
			p.Author,
			age(p.CreatedAt),
		)
		if p.Media.Kind != model.MediaNone {
			fmt.Fprintf(w, " · [%s]", p.Media.Kind)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "     %s\n", p.PermalinkURL)
	}
}

func printThread(w io.Writer, th model.Thread) {
	p := th.Post
	fmt.Fprintf(w, "%s\n%s · %s points · %s comments\n", p.Title, p.Subreddit, humanize.Comma(int64(p.Score)), humanize.Comma(int64(p.NumComments)))
	if p.ExternalURL != "" {
		fmt.Fprintf(w, "link: %s\n", p.ExternalURL)
	}
	if body := strings.TrimSpace(p.BodyMarkdown); body != "" {
		fmt.Fprintf(w, "\n%s\n", body)
	}
	fmt.Fprintln(w)
	model.Walk(th.Comments, func(n model.Node, depth int) bool {
		pad := strings.Repeat("  ", depth)
		switch v := n.(type) {
		case *model.Comment:
			edited := ""
			if v.EditedAt != 0 {
				edited = " (edited)"
			}
			fmt.Fprintf(w, "%s%s · %d · %s%s\n", pad, v.Author, v.Score, age(v.CreatedAt), edited)
			for _, line := range strings.Split(strings.TrimSpace(v.BodyMarkdown), "\n") {
				fmt.Fprintf(w, "%s  %s\n", pad, line)
			}
		case *model.MoreStub:
			more := v.Count
			if more == 0 {
				more = len(v.ChildIDs)
			}
			if more == 0 {
				fmt.Fprintf(w, "%s[continue thread] (%s)\n", pad, v.ID)
			} else {
				fmt.Fprintf(w, "%s[%s more] (%s)\n", pad, humanize.Comma(int64(more)), v.ID)
			}
		}
		return true
	})
}

func printCategories(w io.Writer, cats []model.Category) {
	for _, c := range cats {
		fmt.Fprintf(w, "%-24s %s\n", c.DisplayName, c.Path)
	}
}

func age(epoch int64) string {
	if epoch == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(epoch, 0))
}
