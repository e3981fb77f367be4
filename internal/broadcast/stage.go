package broadcast

// Stage is one step of a single stream-audio request.
type Stage int

const (
	StageIdle Stage = iota
	StageRequestingWeather
	StageGeneratingCommentary
	StageStreamingAudio
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageRequestingWeather:
		return "requesting_weather"
	case StageGeneratingCommentary:
		return "generating_commentary"
	case StageStreamingAudio:
		return "streaming_audio"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}
