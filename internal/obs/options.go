package obs

// Exporter selects where telemetry goes.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterNone   Exporter = "none"
)

// Options configures observability setup.
type Options struct {
	ServiceName    string
	Environment    string
	Version        string
	Exporter       Exporter
	SampleRatio    float64
	DisableMetrics bool
}

// DefaultOptions returns options suitable for local development.
func DefaultOptions() Options {
	return Options{
		ServiceName: "parley",
		Environment: "development",
		Version:     "dev",
		Exporter:    ExporterNone,
		SampleRatio: 1,
	}
}
