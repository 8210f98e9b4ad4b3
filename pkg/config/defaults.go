package config

import "time"

// GetDefaultConfig returns the configuration used when no config file
// exists.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Importer.DaysUntilTicket = 6
	cfg.Importer.TicketOnConflict = true
	cfg.Mail.Debug = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero values with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	cfg.Database.ApplyDefaults()

	if cfg.Importer.FetchTimeout == 0 {
		cfg.Importer.FetchTimeout = 5 * time.Second
	}
	if cfg.Importer.ParseErrorNotificationPeriod == 0 {
		cfg.Importer.ParseErrorNotificationPeriod = 360
	}
	if cfg.Importer.PostmortemLimit == 0 {
		cfg.Importer.PostmortemLimit = 250
	}

	if cfg.Mail.SubjectPrefix == "" {
		cfg.Mail.SubjectPrefix = "[ixsync]"
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = "noreply@localhost"
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = 10 * time.Second
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = 30 * time.Second
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ixsync"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
