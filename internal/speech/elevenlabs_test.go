package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/sunnyside/internal/apperr"
)

// bufferWriter collects relayed bytes.
type bufferWriter struct {
	bytes.Buffer
	flushes int
}

func (b *bufferWriter) Flush() error {
	b.flushes++
	return nil
}

func TestNewElevenLabs_EmptyKey(t *testing.T) {
	_, err := NewElevenLabs(" ", nil)
	require.Error(t, err)
}

func TestElevenLabs_StreamURL(t *testing.T) {
	e, err := NewElevenLabs("xi-test", nil, WithBaseURL("https://tts.example.com/"), WithVoice("voice 1"), WithOutputFormat("mp3_22050_32"))
	require.NoError(t, err)
	require.Equal(t, "https://tts.example.com/v1/text-to-speech/voice%201/stream?output_format=mp3_22050_32", e.streamURL())
}

func TestElevenLabs_SynthesizeRelaysAllBytes(t *testing.T) {
	chunks := [][]byte{chunkOf(4096, 1), chunkOf(4096, 2), chunkOf(512, 3)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/text-to-speech/voice-x/stream", r.URL.Path)
		require.Equal(t, defaultOutputFormat, r.URL.Query().Get("output_format"))
		require.Equal(t, "xi-test", r.Header.Get("xi-api-key"))

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Hey there, sunny day.", req.Text)
		require.Equal(t, "model-y", req.ModelID)

		w.Header().Set("Content-Type", "audio/mpeg")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write(c)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	e, err := NewElevenLabs("xi-test", srv.Client(), WithBaseURL(srv.URL), WithVoice("voice-x"), WithModel("model-y"))
	require.NoError(t, err)

	s, err := e.Synthesize(context.Background(), "Hey there, sunny day.")
	require.NoError(t, err)

	out := &bufferWriter{}
	n, err := Relay(context.Background(), out, s)
	require.NoError(t, err)
	require.Equal(t, int64(8704), n)
	require.Equal(t, bytes.Join(chunks, nil), out.Bytes())
}

func TestElevenLabs_SynthesizeErrorBeforeStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	e, err := NewElevenLabs("xi-bad", srv.Client(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = e.Synthesize(context.Background(), "hello")
	require.True(t, apperr.Is(err, apperr.CodeUpstream))
	require.Contains(t, err.Error(), "401")
}

func TestElevenLabs_DisconnectReleasesUpstream(t *testing.T) {
	released := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		flusher := w.(http.Flusher)
		_, _ = w.Write(chunkOf(4096, 1))
		flusher.Flush()
		_, _ = w.Write(chunkOf(4096, 2))
		flusher.Flush()

		select {
		case <-r.Context().Done():
			close(released)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	e, err := NewElevenLabs("xi-test", srv.Client(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := e.Synthesize(ctx, "hello")
	require.NoError(t, err)

	w := &recordingWriter{failAfter: 1}
	_, err = Relay(ctx, w, s)
	require.ErrorIs(t, err, errGone)

	select {
	case <-released:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream connection was not released after the caller disconnected")
	}
}
