// Package llmsource provides the chunk sources a stream session consumes:
// live language-model streams (OpenAI-compatible and Gemini) and an offline
// reader source for tests and replays. A source yields raw text chunks in
// order; tag boundaries carry no meaning here, the markup parser downstream
// tolerates splits anywhere.
package llmsource

import (
	"errors"
	"io"
)

// ErrTruncated is returned when the model stopped on its output length
// limit. The stream up to that point is still usable.
var ErrTruncated = errors.New("llmsource: generation truncated")

// ErrBlocked is returned when the provider refused to continue generating.
var ErrBlocked = errors.New("llmsource: generation blocked")

// Source yields text chunks from a generation. Next returns [io.EOF] on a
// clean end and any other error on transport failure; both are terminal.
type Source interface {
	Next() (string, error)
	Close() error
}

// Message is one conversation turn sent to the model.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string `yaml:"role" json:"role"`

	// Content is the turn's text.
	Content string `yaml:"content" json:"content"`
}

// ReaderSource adapts an [io.Reader] into a Source, yielding fixed-size
// chunks. Chunk defaults to 64 bytes, small enough to exercise split-tag
// handling on realistic payloads.
type ReaderSource struct {
	R     io.Reader
	Chunk int
}

func (s *ReaderSource) Next() (string, error) {
	n := s.Chunk
	if n <= 0 {
		n = 64
	}
	buf := make([]byte, n)
	read, err := s.R.Read(buf)
	if read > 0 {
		return string(buf[:read]), nil
	}
	if err == nil {
		err = io.EOF
	}
	return "", err
}

func (s *ReaderSource) Close() error {
	if c, ok := s.R.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
