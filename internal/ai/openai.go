package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threadscope/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Summarizer condenses loaded discussion content.
type Summarizer interface {
	// SummarizeThread describes a post and the gist of its comments in the given language.
	SummarizeThread(ctx context.Context, th model.Thread, language string) (string, error)
}

// OpenAIClient implements Summarizer using OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func NewOpenAI(cfg Config) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai: OpenAI model must be specified")
	}
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	return &OpenAIClient{client: c, model: cfg.Model}, nil
}

func (o *OpenAIClient) SummarizeThread(ctx context.Context, th model.Thread, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	sys := fmt.Sprintf(`
		Summarize the discussion below, write in %s, return 3 ~ 5 sentences (60–200 words).
		First state what the post is about, then the main positions taken in the comments.
		Mention disagreement where it exists. Plain text, no links, no lists.
		`, langOrDefault(language))
	out, err := o.create(ctx, sys, threadPrompt(th, 30, 400))
	if err != nil {
		slog.Error("openai: summarize thread error", "post", th.Post.ID, "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// threadPrompt lists the post and up to maxComments comments in tree order,
// each body cut to maxRunes.
func threadPrompt(th model.Thread, maxComments, maxRunes int) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Title: %s\nCommunity: %s\n", th.Post.Title, th.Post.Subreddit)
	if body := strings.TrimSpace(th.Post.BodyMarkdown); body != "" {
		fmt.Fprintf(b, "Post: %s\n", clip(body, maxRunes*2))
	}
	b.WriteString("Comments:\n")
	n := 0
	model.Walk(th.Comments, func(node model.Node, depth int) bool {
		c, ok := node.(*model.Comment)
		if !ok || n >= maxComments {
			return false
		}
		n++
		fmt.Fprintf(b, "%s- %s (%d): %s\n", strings.Repeat("  ", depth), c.Author, c.Score, clip(c.BodyMarkdown, maxRunes))
		return true
	})
	return b.String()
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

func (o *OpenAIClient) create(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func langOrDefault(lang string) string {
	l := strings.TrimSpace(lang)
	if l == "" {
		return "English"
	}
	return l
}
