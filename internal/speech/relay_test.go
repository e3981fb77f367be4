package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStream yields pre-built chunks and records how it was consumed.
type fakeStream struct {
	chunks [][]byte
	next   int
	pulls  int
	closed int
	err    error // returned once chunks are exhausted instead of io.EOF
}

func (f *fakeStream) Next() ([]byte, error) {
	f.pulls++
	if f.next >= len(f.chunks) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	c := f.chunks[f.next]
	f.next++
	return c, nil
}

func (f *fakeStream) Close() error {
	f.closed++
	return nil
}

// recordingWriter keeps every Write as a separate chunk. failAfter > 0 makes
// writes beyond that count fail, like a caller that hung up.
type recordingWriter struct {
	writes    [][]byte
	flushes   int
	failAfter int
}

var errGone = errors.New("connection reset by peer")

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.failAfter > 0 && len(w.writes) >= w.failAfter {
		return 0, errGone
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (w *recordingWriter) Flush() error {
	w.flushes++
	return nil
}

func chunkOf(size int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, size)
}

func TestRelay_PassesChunksThroughInOrder(t *testing.T) {
	chunks := [][]byte{chunkOf(4096, 'a'), chunkOf(4096, 'b'), chunkOf(512, 'c')}
	s := &fakeStream{chunks: chunks}
	w := &recordingWriter{}

	n, err := Relay(context.Background(), w, s)
	require.NoError(t, err)
	require.Equal(t, int64(4096+4096+512), n)

	require.Len(t, w.writes, 3)
	for i := range chunks {
		require.Equal(t, chunks[i], w.writes[i], "chunk %d", i)
	}
	require.Equal(t, 3, w.flushes, "every chunk is flushed as soon as it arrives")
	require.Equal(t, 4, s.pulls, "three chunks then end of stream")
	require.Equal(t, 1, s.closed)
}

func TestRelay_StopsPullingAfterCallerDisconnects(t *testing.T) {
	s := &fakeStream{chunks: [][]byte{chunkOf(4096, 'a'), chunkOf(4096, 'b'), chunkOf(512, 'c')}}
	w := &recordingWriter{failAfter: 1}

	n, err := Relay(context.Background(), w, s)
	require.ErrorIs(t, err, errGone)
	require.Equal(t, int64(4096), n)
	require.Len(t, w.writes, 1)
	require.Equal(t, 2, s.pulls, "no chunk is pulled after the failed write")
	require.Equal(t, 1, s.closed)
}

func TestRelay_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeStream{chunks: [][]byte{chunkOf(10, 'a')}}
	w := &recordingWriter{}

	_, err := Relay(ctx, w, s)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, s.pulls)
	require.Equal(t, 1, s.closed)
}

func TestRelay_UpstreamErrorMidStream(t *testing.T) {
	upstreamErr := errors.New("unexpected EOF")
	s := &fakeStream{chunks: [][]byte{chunkOf(100, 'a')}, err: upstreamErr}
	w := &recordingWriter{}

	n, err := Relay(context.Background(), w, s)
	require.ErrorIs(t, err, upstreamErr)
	require.Equal(t, int64(100), n)
	require.Equal(t, 1, s.closed)
}

func TestReaderStream(t *testing.T) {
	body := io.NopCloser(bytes.NewReader(chunkOf(10000, 'z')))
	s := NewReaderStream(body, 4096)

	var sizes []int
	for {
		chunk, err := s.Next()
		if IsEnd(err) {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(chunk), 4096)
		sizes = append(sizes, len(chunk))
	}
	require.Equal(t, []int{4096, 4096, 1808}, sizes)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
