package generation

import (
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/schema"
)

// Stream is a lazy, finite, non-restartable sequence of answer fragments.
// It is not safe for concurrent use.
type Stream struct {
	sr     *schema.StreamReader[*schema.Message]
	done   bool
	closed bool
}

func newStream(sr *schema.StreamReader[*schema.Message]) *Stream {
	return &Stream{sr: sr}
}

// Recv returns the next non-empty text fragment. It returns io.EOF once the
// answer is complete, and keeps returning io.EOF afterwards.
func (s *Stream) Recv() (string, error) {
	if s.done || s.closed {
		return "", io.EOF
	}
	for {
		msg, err := s.sr.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", fmt.Errorf("generation: stream receive error: %w", err)
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

// Close releases the underlying stream. It is safe to call more than once.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.sr.Close()
}
