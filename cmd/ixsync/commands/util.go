package commands

import (
	"fmt"

	"github.com/peerix/ixsync/internal/logger"
	"github.com/peerix/ixsync/pkg/config"
	"github.com/peerix/ixsync/pkg/importer"
	"github.com/peerix/ixsync/pkg/ixf"
	"github.com/peerix/ixsync/pkg/mailer"
	"github.com/peerix/ixsync/pkg/metrics"
	"github.com/peerix/ixsync/pkg/registry/store"
	"github.com/peerix/ixsync/pkg/ticket"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// runtimeDeps bundles everything a command needs to run imports.
type runtimeDeps struct {
	Store      *store.GORMStore
	Importer   *importer.Importer
	PostMortem *importer.PostMortem
	Metrics    *metrics.Metrics
}

// buildDeps wires the store, feed client, mail sender, ticket client and
// importer from configuration. The caller owns the store and must close
// it.
func buildDeps(cfg *config.Config) (*runtimeDeps, error) {
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	var sender mailer.Sender
	if cfg.Mail.Debug {
		sender = mailer.NewDebugSender()
	} else {
		sender = mailer.NewSMTPSender(cfg.Mail.SMTPAddr)
	}

	var tickets ticket.Client
	if cfg.Ticket.Send {
		tickets = ticket.NewAPIClient(cfg.Ticket.URL, cfg.Ticket.Key)
	} else {
		tickets = ticket.NewMockClient()
	}

	m := metrics.New()

	imp := importer.New(
		st,
		ixf.NewClient(cfg.Importer.FetchTimeout),
		sender,
		tickets,
		m,
		importer.Config{
			TicketOnConflict:             cfg.Importer.TicketOnConflict,
			NotifyIXOnConflict:           cfg.Importer.NotifyIXOnConflict,
			NotifyNetOnConflict:          cfg.Importer.NotifyNetOnConflict,
			DaysUntilTicket:              cfg.Importer.DaysUntilTicket,
			ParseErrorNotificationPeriod: cfg.Importer.ParseErrorNotificationPeriod,
			MailSubjectPrefix:            cfg.Mail.SubjectPrefix,
			MailFrom:                     cfg.Mail.From,
		},
	)

	return &runtimeDeps{
		Store:      st,
		Importer:   imp,
		PostMortem: importer.NewPostMortem(st, cfg.Importer.PostmortemLimit),
		Metrics:    m,
	}, nil
}

// getConfigSource returns a description of where the config was loaded
// from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
