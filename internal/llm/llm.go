package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/whaleen/portfolio/internal/catalog"
	"github.com/whaleen/portfolio/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// Blurb is a drafted resume entry for one project.
type Blurb struct {
	Headline string   `json:"headline"`
	Bullets  []string `json:"bullets"`
	Skills   []string `json:"skills"`
}

// Client wraps the Anthropic API for resume drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildBlurbPrompt constructs the system and user prompts for a resume blurb.
func buildBlurbPrompt(p models.Project) (system string, user string) {
	system = `You write resume entries for software projects. Given facts about one project, return ONLY a JSON object with these fields:
- "headline": one line, at most 12 words, naming what was built
- "bullets": 2 to 4 achievement-oriented bullet points, each a single sentence starting with a past-tense verb
- "skills": the languages, frameworks and platforms the project demonstrates

Rules:
- Use only the facts provided; never invent metrics, users or employers
- Prefer concrete technology names over generic words
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, value)
	}

	line("Project", p.Key())
	line("Summary", p.Summary)
	line("Type", p.ProjectType)
	line("Language", p.EffectiveLanguage)
	line("Framework", p.Framework)
	line("Backend", p.Backend)
	line("Database", p.Database)
	line("Blockchain", p.Blockchain)
	line("Styling", p.Styling)
	if tags := catalog.TopTags(p.Tags, 0); len(tags) > 0 {
		line("Tags", strings.Join(tags, ", "))
	}
	line("Live URL", p.URL)
	line("Stars", string(p.Stars))
	if p.HasTests {
		line("Testing", "has automated tests")
	}
	if p.HasCI {
		line("CI/CD", "has a CI/CD pipeline")
	}
	if p.Notes != "" && p.Notes != p.Summary {
		line("Notes", p.Notes)
	}
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func parseBlurb(text string) (*Blurb, error) {
	text = stripFence(text)
	var b Blurb
	if err := json.Unmarshal([]byte(text), &b); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if b.Headline == "" {
		return nil, fmt.Errorf("LLM response has no headline")
	}
	return &b, nil
}

// ResumeBlurb drafts a resume entry for p.
func (c *Client) ResumeBlurb(ctx context.Context, p models.Project) (*Blurb, error) {
	systemPrompt, userPrompt := buildBlurbPrompt(p)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseBlurb(text)
}
