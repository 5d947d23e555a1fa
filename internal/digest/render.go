// Package digest exports a loaded thread as a Markdown file with YAML
// front matter, and reads such files back.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"threadscope/internal/model"
)

// FrontMatter is the YAML header of a digest.
type FrontMatter struct {
	Title     string `yaml:"title"`
	Slug      string `yaml:"slug"`
	Datetime  string `yaml:"datetime"`
	Subreddit string `yaml:"subreddit"`
	Permalink string `yaml:"permalink"`
	Score     int    `yaml:"score"`
	Comments  int    `yaml:"comments"`
	Media     string `yaml:"media,omitempty"`
	Summary   string `yaml:"summary,omitempty"`
}

// Line is one flattened tree node.
type Line struct {
	Depth   int
	Stub    bool
	More    int
	Author  string
	Score   int
	Created string
	Body    string
}

type Data struct {
	FrontMatter
	ExternalURL  string
	Body         string
	CommentCount int
	Lines        []Line
}

//go:embed digest.tmpl
var digestTpl string

var compiled = template.Must(template.New("digest").Funcs(template.FuncMap{
	"indent": func(n int) string { return strings.Repeat("  ", n) },
}).Parse(digestTpl))

// FromThread flattens th into template data.
func FromThread(th model.Thread, summary string, now time.Time) Data {
	p := th.Post
	d := Data{
		FrontMatter: FrontMatter{
			Title:     p.Title,
			Slug:      "thread-" + p.ID,
			Datetime:  now.UTC().Format("2006-01-02 15:04"),
			Subreddit: p.Subreddit,
			Permalink: p.PermalinkURL,
			Score:     p.Score,
			Comments:  p.NumComments,
			Summary:   summary,
		},
		ExternalURL:  p.ExternalURL,
		Body:         strings.TrimSpace(p.BodyMarkdown),
		CommentCount: p.NumComments,
	}
	if p.Media.Kind != model.MediaNone {
		d.Media = p.Media.Kind.String()
	}
	model.Walk(th.Comments, func(n model.Node, depth int) bool {
		switch v := n.(type) {
		case *model.Comment:
			d.Lines = append(d.Lines, Line{
				Depth:   depth,
				Author:  v.Author,
				Score:   v.Score,
				Created: time.Unix(v.CreatedAt, 0).UTC().Format("2006-01-02 15:04"),
				Body:    strings.Join(strings.Fields(v.BodyMarkdown), " "),
			})
		case *model.MoreStub:
			more := v.Count
			if more == 0 {
				more = len(v.ChildIDs)
			}
			d.Lines = append(d.Lines, Line{Depth: depth, Stub: true, More: more})
		}
		return true
	})
	return d
}

// Render writes the front matter followed by the Markdown body.
func Render(d Data) (string, error) {
	fm, err := yaml.Marshal(d.FrontMatter)
	if err != nil {
		return "", fmt.Errorf("digest: marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	if err := compiled.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("digest: render: %w", err)
	}
	return buf.String(), nil
}
