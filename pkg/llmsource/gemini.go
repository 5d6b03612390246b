package llmsource

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// GeminiConfig configures a Gemini streaming source.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`

	// Model should not start with "models/".
	Model string `yaml:"model"`
}

// GeminiSource pulls text parts from a Gemini content stream.
type GeminiSource struct {
	next      func() (*genai.GenerateContentResponse, error, bool)
	stop      func()
	done      bool
	truncated bool
}

// NewGemini starts a streaming generation and returns a source over its
// text parts.
func NewGemini(ctx context.Context, cfg GeminiConfig, messages []Message) (*GeminiSource, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llmsource: gemini model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llmsource: gemini client: %w", err)
	}

	var gcfg *genai.GenerateContentConfig
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			if gcfg == nil {
				gcfg = &genai.GenerateContentConfig{}
			}
			gcfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	next, stop := iter.Pull2(client.Models.GenerateContentStream(ctx, cfg.Model, contents, gcfg))
	return &GeminiSource{next: next, stop: stop}, nil
}

func (s *GeminiSource) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.truncated {
		s.done = true
		return "", ErrTruncated
	}
	for {
		chunk, err, ok := s.next()
		if !ok {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			if e, ok := err.(*apierror.APIError); ok {
				err = e.Unwrap()
			}
			return "", fmt.Errorf("llmsource: gemini stream: %w", err)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		switch cand.FinishReason {
		case genai.FinishReasonMaxTokens:
			// Deliver the final part first; the truncation surfaces on
			// the next pull.
			s.truncated = true
		case genai.FinishReasonSafety:
			s.done = true
			return "", fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason)
		}
		if cand.Content == nil {
			continue
		}
		var text string
		for _, p := range cand.Content.Parts {
			text += p.Text
		}
		if text != "" {
			return text, nil
		}
		if s.truncated {
			s.done = true
			return "", ErrTruncated
		}
	}
}

func (s *GeminiSource) Close() error {
	s.done = true
	s.stop()
	return nil
}
