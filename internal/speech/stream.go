package speech

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultChunkSize bounds the bytes held per pulled chunk.
const DefaultChunkSize = 4096

// Stream is a pull-based, non-restartable sequence of audio chunks.
//
// Next returns the next chunk in arrival order, or io.EOF once the upstream
// is exhausted. The returned slice is only valid until the following call.
// Close releases the upstream connection; it is safe to call more than once.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// Synthesizer opens a streaming speech-synthesis call for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Stream, error)
}

// readerStream adapts an upstream response body to Stream. Each Next is a
// single Read, so chunks are forwarded as soon as the transport delivers them.
type readerStream struct {
	body      io.ReadCloser
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

// NewReaderStream wraps body; chunkSize <= 0 selects DefaultChunkSize.
func NewReaderStream(body io.ReadCloser, chunkSize int) Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerStream{body: body, buf: make([]byte, chunkSize)}
}

func (s *readerStream) Next() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			// Hand the bytes out now; a trailing error surfaces on the next call.
			return s.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *readerStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// IsEnd reports whether err marks a normally exhausted stream.
func IsEnd(err error) bool {
	return errors.Is(err, io.EOF)
}
