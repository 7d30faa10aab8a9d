package llm

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// TextStream yields the text increments of a streaming response until io.EOF.
//
// It is a lazy, finite, non-restartable sequence. Close releases the
// connection and the call's timeout; it is idempotent and must be called even
// when Recv returned an error.
type TextStream struct {
	provider string
	body     io.ReadCloser
	r        *bufio.Reader
	decode   lineFunc
	logger   zerolog.Logger

	done    bool
	closed  bool
	skipped int
}

func newTextStream(provider string, body io.ReadCloser, decode lineFunc, logger zerolog.Logger) *TextStream {
	return &TextStream{
		provider: provider,
		body:     body,
		r:        bufio.NewReaderSize(body, 64*1024),
		decode:   decode,
		logger:   logger,
	}
}

// Provider returns the id of the provider the stream comes from.
func (s *TextStream) Provider() string { return s.provider }

// Skipped returns how many malformed lines were dropped so far.
func (s *TextStream) Skipped() int { return s.skipped }

// Recv returns the next non-empty text increment. io.EOF marks the normal end
// of the stream; a read failure is reported as *TransportError.
func (s *TextStream) Recv() (string, error) {
	for {
		if s.closed {
			return "", ErrStreamClosed
		}
		if s.done {
			return "", io.EOF
		}

		line, err := s.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			s.done = true
			return "", &TransportError{Provider: s.provider, Cause: err}
		}
		if errors.Is(err, io.EOF) {
			// Some providers close the connection without a terminal line.
			s.done = true
			if len(line) == 0 {
				return "", io.EOF
			}
		}

		text, end, derr := s.decode(line)
		if derr != nil {
			s.skipped++
			s.logger.Warn().
				Str("provider", s.provider).
				Err(derr).
				Int("line_bytes", len(line)).
				Msg("skip malformed stream line")
			continue
		}
		if end {
			s.done = true
		}
		if text != "" {
			return text, nil
		}
	}
}

func (s *TextStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// Collect drains the stream into one whitespace-trimmed string and closes it.
// On error no partial text is returned.
func Collect(s *TextStream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		text, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return strings.TrimSpace(b.String()), nil
			}
			return "", err
		}
		b.WriteString(text)
	}
}
