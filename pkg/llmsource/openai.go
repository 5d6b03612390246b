package llmsource

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

const (
	oaiFinishReasonStop          = "stop"
	oaiFinishReasonLength        = "length"
	oaiFinishReasonContentFilter = "content_filter"
)

// OpenAIConfig configures an OpenAI-compatible streaming source.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`

	// Temperature is passed through when positive.
	Temperature float64 `yaml:"temperature,omitempty"`
}

// OpenAISource pulls text deltas from an OpenAI chat-completions stream.
type OpenAISource struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	index  int64
	done   bool
}

// NewOpenAI starts a streaming chat completion and returns a source over
// its text deltas.
func NewOpenAI(ctx context.Context, cfg OpenAIConfig, messages []Message) (*OpenAISource, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llmsource: openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    cfg.Model,
		Messages: convOpenAIMessages(messages),
	}
	if cfg.Temperature > 0 {
		params.Temperature = param.NewOpt(cfg.Temperature)
	}
	return &OpenAISource{
		stream: client.Chat.Completions.NewStreaming(ctx, params),
	}, nil
}

func (s *OpenAISource) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		var sel *openai.ChatCompletionChunkChoice
		if s.index == 0 {
			s.index = chunk.Choices[0].Index
			sel = &chunk.Choices[0]
		} else {
			for _, c := range chunk.Choices {
				if c.Index == s.index {
					sel = &c
					break
				}
			}
			if sel == nil {
				continue
			}
		}
		switch sel.FinishReason {
		case oaiFinishReasonLength:
			s.done = true
			return "", ErrTruncated
		case oaiFinishReasonContentFilter:
			s.done = true
			return "", fmt.Errorf("%w: %s", ErrBlocked, sel.Delta.Refusal)
		case oaiFinishReasonStop:
			s.done = true
			if sel.Delta.Content != "" {
				return sel.Delta.Content, nil
			}
			return "", io.EOF
		}
		if sel.Delta.Refusal != "" {
			s.done = true
			return "", fmt.Errorf("%w: %s", ErrBlocked, sel.Delta.Refusal)
		}
		if sel.Delta.Content != "" {
			return sel.Delta.Content, nil
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		return "", fmt.Errorf("llmsource: openai stream: %w", err)
	}
	return "", io.EOF
}

func (s *OpenAISource) Close() error {
	return s.stream.Close()
}

func convOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
