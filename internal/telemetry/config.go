package telemetry

// Config controls trace export.
type Config struct {
	// Enabled turns tracing on. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling ratio in [0.0, 1.0].
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1" yaml:"sample_rate"`

	// ServiceName and ServiceVersion identify this process in traces.
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" yaml:"service_version"`
}
