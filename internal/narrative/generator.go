// Package narrative turns slot recommendations into a short human-readable
// summary using OpenAI's chat API. The feature is optional: construction
// fails without an API key and callers fall back to the plain slot list.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"stallcast/internal/predict"
)

// Generator produces natural-language summaries of predicted availability.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a new narrative generator.
// It reads the OPENAI_API_KEY environment variable for authentication.
func NewGenerator() (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Generator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Summarize generates a one-paragraph summary for the given recommendations.
func (g *Generator) Summarize(ctx context.Context, slots []predict.BestSlot) (string, error) {
	if len(slots) == 0 {
		return "", errors.New("no slots to summarize")
	}

	prompt := buildPrompt(slots)
	log.Printf("narrative: summarizing %d recommended slots", len(slots))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You summarize restroom availability forecasts in one friendly paragraph. Do not invent data."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}

	return text, nil
}

func buildPrompt(slots []predict.BestSlot) string {
	var b strings.Builder
	b.WriteString("Upcoming restroom availability windows:\n")
	for _, s := range slots {
		fmt.Fprintf(&b, "- %s: %.0f%% busy, confidence %.2f. %s\n",
			s.Forecast.Display, s.Forecast.BusyLevel, s.Forecast.Confidence, s.Reason)
	}
	b.WriteString("Write a single short paragraph recommending when to go.")
	return b.String()
}
