package speech

import (
	"context"
	"fmt"
	"io"
)

// FlushWriter is the caller-facing side of a relay. *bufio.Writer satisfies it.
type FlushWriter interface {
	io.Writer
	Flush() error
}

// Relay pulls chunks from s and writes each one to w, flushing after every
// chunk so nothing accumulates in memory. Bytes are neither inspected nor
// re-chunked. Relay stops pulling as soon as a write or flush fails (the
// caller went away) or ctx is done, and always closes s. It returns the
// number of bytes delivered; a nil error means the upstream reached its end.
func Relay(ctx context.Context, w FlushWriter, s Stream) (int64, error) {
	defer s.Close()

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		chunk, err := s.Next()
		if err != nil {
			if IsEnd(err) {
				return written, nil
			}
			return written, fmt.Errorf("speech: read upstream: %w", err)
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("speech: write to caller: %w", err)
		}
		if err := w.Flush(); err != nil {
			return written, fmt.Errorf("speech: flush to caller: %w", err)
		}
	}
}
