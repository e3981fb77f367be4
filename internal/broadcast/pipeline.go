package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/commentary"
	"github.com/i474232898/sunnyside/internal/speech"
)

// WeatherSummarizer is the slice of weather.Service the pipeline needs.
type WeatherSummarizer interface {
	Summary(ctx context.Context, place string) (string, error)
}

// Pipeline chains weather lookup, commentary generation and speech synthesis.
// It holds only immutable collaborators and is safe for concurrent use; all
// per-request state lives in Run.
type Pipeline struct {
	weather     WeatherSummarizer
	generator   commentary.Generator
	synthesizer speech.Synthesizer
	maxChars    int
	logger      *slog.Logger
}

func NewPipeline(w WeatherSummarizer, g commentary.Generator, s speech.Synthesizer, maxChars int, logger *slog.Logger) (*Pipeline, error) {
	if w == nil {
		return nil, errors.New("broadcast: weather summarizer must not be nil")
	}
	if g == nil {
		return nil, errors.New("broadcast: commentary generator must not be nil")
	}
	if s == nil {
		return nil, errors.New("broadcast: speech synthesizer must not be nil")
	}
	if maxChars <= 0 {
		maxChars = commentary.DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		weather:     w,
		generator:   g,
		synthesizer: s,
		maxChars:    maxChars,
		logger:      logger,
	}, nil
}

// Run tracks one request through its stages.
type Run struct {
	id     string
	stage  Stage
	err    error
	logger *slog.Logger
}

func (r *Run) ID() string { return r.id }

func (r *Run) Stage() Stage { return r.stage }

// Err is the failure reason once the run is Failed.
func (r *Run) Err() error { return r.err }

func (r *Run) advance(next Stage) {
	if r.stage.Terminal() {
		return
	}
	r.logger.Debug("broadcast stage", "from", r.stage.String(), "to", next.String())
	r.stage = next
}

func (r *Run) fail(err error) error {
	if r.stage.Terminal() {
		return err
	}
	r.logger.Warn("broadcast failed", "stage", r.stage.String(), "code", apperr.CodeOf(err), "err", err)
	r.stage = StageFailed
	r.err = err
	return err
}

// NewRun starts a run in the Idle stage. id and attrs are attached to its logs.
func (p *Pipeline) NewRun(id string, attrs ...any) *Run {
	return &Run{
		id:     id,
		stage:  StageIdle,
		logger: p.logger.With(append([]any{"request_id", id}, attrs...)...),
	}
}

// Prepare runs every step up to the first audio byte: weather lookup,
// commentary generation, sanitization and opening the synthesis stream. Any
// error here happens before the caller has received anything. On success
// the run is in StreamingAudio and the caller must hand the stream to
// Stream (or close it).
func (p *Pipeline) Prepare(ctx context.Context, run *Run, place string) (speech.Stream, error) {
	run.advance(StageRequestingWeather)
	summary, err := p.weather.Summary(ctx, place)
	if err != nil {
		return nil, run.fail(err)
	}

	run.advance(StageGeneratingCommentary)
	text, err := p.generator.Generate(ctx, summary)
	if err != nil {
		if apperr.CodeOf(err) == "" {
			err = apperr.Generation("commentary generation failed", err)
		}
		return nil, run.fail(err)
	}
	text = commentary.Sanitize(text, p.maxChars)
	if text == "" {
		return nil, run.fail(apperr.Generation("commentary generation returned nothing", errors.New("broadcast: commentary empty after sanitizing")))
	}

	stream, err := p.synthesizer.Synthesize(ctx, text)
	if err != nil {
		if apperr.CodeOf(err) == "" {
			err = apperr.Upstream("speech synthesis failed", err)
		}
		return nil, run.fail(err)
	}

	run.advance(StageStreamingAudio)
	run.logger.Info("broadcast streaming", "chars", len(text))
	return stream, nil
}

// Stream relays the prepared audio to w. A failure here can only be
// signaled by ending the connection, since bytes may already be out.
func (p *Pipeline) Stream(ctx context.Context, run *Run, w speech.FlushWriter, stream speech.Stream) error {
	n, err := speech.Relay(ctx, w, stream)
	if err != nil {
		return run.fail(fmt.Errorf("broadcast: relay stopped after %d bytes: %w", n, err))
	}
	run.advance(StageComplete)
	run.logger.Info("broadcast complete", "bytes", n)
	return nil
}
