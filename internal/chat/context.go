package chat

// Verbosity settings.
const (
	VerbosityConcise = "concise"
	VerbosityDefault = "default"
	VerbosityLengthy = "lengthy"
)

// Temperature presets.
const (
	TemperatureLow     = "low"
	TemperatureDefault = "default"
	TemperatureHigh    = "high"
)

// Performance preferences.
const (
	PerformanceSpeed   = "speed"
	PerformanceQuality = "quality"
)

// Context is the per-request generation context. Zero values mean "not set"
// so cached session defaults can fill them in.
type Context struct {
	Resume            string `json:"resume,omitempty"`
	JobDescription    string `json:"jobDescription,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
	Verbosity         string `json:"verbosity,omitempty"`
	Language          string `json:"language,omitempty"`
	Temperature       string `json:"temperature,omitempty"`
	Performance       string `json:"performance,omitempty"`
}

// Merge overlays override on base. Explicitly set override fields win;
// unset fields fall back to the base.
func Merge(base, override Context) Context {
	merged := base
	if override.Resume != "" {
		merged.Resume = override.Resume
	}
	if override.JobDescription != "" {
		merged.JobDescription = override.JobDescription
	}
	if override.AdditionalContext != "" {
		merged.AdditionalContext = override.AdditionalContext
	}
	if override.Verbosity != "" {
		merged.Verbosity = override.Verbosity
	}
	if override.Language != "" {
		merged.Language = override.Language
	}
	if override.Temperature != "" {
		merged.Temperature = override.Temperature
	}
	if override.Performance != "" {
		merged.Performance = override.Performance
	}
	return merged
}

func temperatureFor(c Context) float32 {
	switch c.Temperature {
	case TemperatureLow:
		return 0.2
	case TemperatureHigh:
		return 0.95
	default:
		return 0.7
	}
}

func topPFor(c Context) float32 {
	switch c.Performance {
	case PerformanceSpeed:
		return 0.6
	case PerformanceQuality:
		return 0.95
	default:
		return 0.8
	}
}

// maxTokensFor bounds the response length. Speed and concise requests are
// capped hard; quality and lengthy requests get at least 1000 tokens even
// when the configured base is lower.
func maxTokensFor(c Context, base int) int {
	if base <= 0 {
		base = 1000
	}
	switch {
	case c.Verbosity == VerbosityConcise || c.Performance == PerformanceSpeed:
		return min(base, 300)
	case c.Verbosity == VerbosityLengthy || c.Performance == PerformanceQuality:
		return max(base, 1000)
	default:
		return base
	}
}

// resumeLimitFor and jdLimitFor bound how much heavy context enters the
// prompt, trading fidelity for first-token latency.
func resumeLimitFor(c Context) int {
	switch {
	case c.Performance == PerformanceSpeed || c.Verbosity == VerbosityConcise:
		return 1500
	case c.Performance == PerformanceQuality || c.Verbosity == VerbosityLengthy:
		return 12000
	default:
		return 6000
	}
}

func jdLimitFor(c Context) int {
	switch {
	case c.Performance == PerformanceSpeed || c.Verbosity == VerbosityConcise:
		return 800
	case c.Performance == PerformanceQuality || c.Verbosity == VerbosityLengthy:
		return 5000
	default:
		return 2500
	}
}
