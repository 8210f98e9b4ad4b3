// Package importer is the reconciliation engine: it synchronizes the
// registry's connection records for an IXLAN against the exchange's
// IX-F member export, applying changes automatically for consenting
// networks and raising dated proposals for everyone else.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peerix/ixsync/internal/telemetry"
	"github.com/peerix/ixsync/pkg/ixf"
	"github.com/peerix/ixsync/pkg/mailer"
	"github.com/peerix/ixsync/pkg/metrics"
	"github.com/peerix/ixsync/pkg/registry/models"
	"github.com/peerix/ixsync/pkg/registry/store"
	"github.com/peerix/ixsync/pkg/ticket"
)

// Decision reasons carried on proposals, archive entries and
// notifications.
const (
	ReasonNewEntry      = "new entry"
	ReasonEntryGone     = "entry gone from remote"
	ReasonValuesChanged = "values changed"
)

// Config holds the importer's behavior knobs.
type Config struct {
	// TicketOnConflict enables support-ticket creation.
	TicketOnConflict bool

	// NotifyIXOnConflict / NotifyNetOnConflict gate outbound email per
	// recipient type. Gated messages are still written to the email log.
	NotifyIXOnConflict  bool
	NotifyNetOnConflict bool

	// DaysUntilTicket is the proposal age threshold for ticket
	// escalation. Zero escalates every open unticketed proposal.
	DaysUntilTicket int

	// ParseErrorNotificationPeriod is the minimum spacing, in hours,
	// between repeated feed-error notifications per IXLAN.
	ParseErrorNotificationPeriod int

	// MailSubjectPrefix and MailFrom shape outbound notifications.
	MailSubjectPrefix string
	MailFrom          string
}

// Importer drives reconciliation runs. It is safe for concurrent use;
// each run keeps its own state and runs for distinct IXLANs may execute
// in parallel.
type Importer struct {
	store   *store.GORMStore
	feeds   *ixf.Client
	sender  mailer.Sender
	tickets ticket.Client
	metrics *metrics.Metrics
	cfg     Config

	// Now is the run clock, swappable in tests.
	Now func() time.Time
}

// New creates an importer.
func New(st *store.GORMStore, feeds *ixf.Client, sender mailer.Sender, tickets ticket.Client, m *metrics.Metrics, cfg Config) *Importer {
	return &Importer{
		store:   st,
		feeds:   feeds,
		sender:  sender,
		tickets: tickets,
		metrics: m,
		cfg:     cfg,
		Now:     time.Now,
	}
}

// RunOptions select the scope and mode of a single run.
type RunOptions struct {
	// ASN limits the run to a single network. Zero processes everyone.
	ASN uint32

	// Save commits changes. False is the preview mode: the same
	// decision stream is computed with no writes, emails or tickets.
	Save bool

	// CacheOnly skips the network and uses the locally cached feed.
	CacheOnly bool

	// SkipImport fetches and validates the feed and runs proposal
	// cleanup, but does not reconcile members.
	SkipImport bool
}

// Result is the outcome of one run.
type Result struct {
	Success  bool        `json:"success"`
	NetCount int         `json:"net_count"`
	Log      *AttemptLog `json:"log"`
}

// run is the per-run state. It mirrors the lifetime of one IXLAN
// reconciliation and is discarded afterwards.
type run struct {
	imp   *Importer
	ixlan *models.IXLan
	opts  RunOptions
	save  bool
	now   time.Time

	attempt *AttemptLog

	// seen is the set of identity keys present in the feed, including
	// auxiliary single-family keys for partially supported networks.
	seen models.IdentitySet

	// pending are the surviving feed rows, in feed order.
	pending []*candidate

	// deletions index delete decisions by identity key so the
	// consolidation pass can find single-stack siblings.
	deletions    map[models.Identity]*deleteDecision
	deletionList []*deleteDecision

	saves []*saveDecision

	invalidIPErrors []string
	notifications   []notification

	// applied actions in apply order, grouped for the archiver.
	applied map[models.Action][]*appliedAction
}

// appliedAction is one executed add/modify/delete, with the version id
// observed immediately before the mutation.
type appliedAction struct {
	netixlan        *models.NetworkIXLan
	reason          string
	versionBeforeID uint
}

func (imp *Importer) newRun(ixlan *models.IXLan, opts RunOptions) *run {
	return &run{
		imp:       imp,
		ixlan:     ixlan,
		opts:      opts,
		save:      opts.Save,
		now:       imp.Now().UTC(),
		attempt:   NewAttemptLog(),
		seen:      models.IdentitySet{},
		deletions: map[models.Identity]*deleteDecision{},
		applied: map[models.Action][]*appliedAction{
			models.ActionAdd:    {},
			models.ActionModify: {},
			models.ActionDelete: {},
		},
	}
}

// Run reconciles one IXLAN against its member export feed.
//
// Feed-level failures (transport, shape, no prefixes) do not return an
// error: they are recorded on the attempt log and the result, and the
// exchange is notified subject to throttling. An error return means the
// run itself broke.
func (imp *Importer) Run(ctx context.Context, ixlanID uint, opts RunOptions) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "importer.run")
	defer span.End()
	started := time.Now()

	ixlan, err := imp.store.GetIXLan(ctx, ixlanID)
	if err != nil {
		return nil, err
	}

	r := imp.newRun(ixlan, opts)

	result, err := r.execute(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		imp.metrics.ObserveRun("error", time.Since(started))
		return result, err
	}

	outcome := "ok"
	if !result.Success {
		outcome = "error"
	}
	imp.metrics.ObserveRun(outcome, time.Since(started))
	return result, nil
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	imp := r.imp

	var (
		doc *ixf.MemberExport
		err error
	)
	if r.opts.CacheOnly {
		doc, err = imp.feeds.FetchCached(r.ixlan.MemberExportURL)
	} else {
		doc, err = imp.feeds.Fetch(ctx, r.ixlan.MemberExportURL)
	}
	if err != nil {
		var srcErr *ixf.SourceError
		if !errors.As(err, &srcErr) {
			return r.failed(ctx), err
		}
		imp.metrics.RecordFeedError()
		slog.Warn("IX-F feed unusable",
			"ixlan_id", r.ixlan.ID, "error", srcErr.Reason)
		r.notifyError(ctx, srcErr.Reason)
		r.attempt.LogError(srcErr.Reason)
		return r.failed(ctx), nil
	}

	// Previous feed error clears on the first clean fetch.
	if r.save && r.ixlan.ImportError != nil {
		if err := imp.store.SetIXLanImportError(ctx, r.ixlan.ID, nil); err != nil {
			return r.failed(ctx), err
		}
		r.ixlan.ImportError = nil
	}

	if len(r.ixlan.ActivePrefixes()) == 0 {
		r.attempt.LogError("No prefixes defined on ixlan")
		return r.failed(ctx), nil
	}

	if r.opts.SkipImport {
		if err := r.cleanup(ctx); err != nil {
			return r.failed(ctx), err
		}
		return r.succeeded(), nil
	}

	if err := r.parse(ctx, doc); err != nil {
		r.attempt.LogError(fmt.Sprintf("Internal error: %v", err))
		return r.failed(ctx), err
	}

	process := func(tx *store.GORMStore) error {
		existing, err := tx.ActiveNetIXLans(ctx, r.ixlan.ID, r.opts.ASN)
		if err != nil {
			return err
		}
		r.decideDeletions(existing)
		r.decideSaves(existing)
		r.consolidate()

		// Deletes go first so that an address freed by a delete can be
		// reused by a save without tripping uniqueness.
		if err := r.applyDeletions(ctx, tx); err != nil {
			return err
		}
		return r.applySaves(ctx, tx)
	}

	if r.save {
		err = imp.store.Transaction(func(tx *store.GORMStore) error {
			return process(tx)
		})
	} else {
		err = process(imp.store)
	}
	if err != nil {
		r.attempt.LogError(fmt.Sprintf("Internal error: %v", err))
		return r.failed(ctx), err
	}

	if err := r.cleanup(ctx); err != nil {
		return r.failed(ctx), err
	}

	// Notification consolidation and dispatch happen strictly after the
	// transaction, then ticket aging, then the archive.
	if err := r.notifyProposals(ctx); err != nil {
		slog.Error("notification dispatch failed", "ixlan_id", r.ixlan.ID, "error", err)
	}

	if err := r.ticketAgedProposals(ctx); err != nil {
		slog.Error("ticket escalation failed", "ixlan_id", r.ixlan.ID, "error", err)
	}

	if err := r.archive(ctx); err != nil {
		return r.failed(ctx), err
	}

	if len(r.invalidIPErrors) > 0 {
		r.notifyError(ctx, strings.Join(r.invalidIPErrors, "\n"))
	}

	if r.save {
		if err := r.updateExchange(ctx); err != nil {
			return r.failed(ctx), err
		}
		if err := r.saveAttempt(ctx); err != nil {
			return r.failed(ctx), err
		}
	}

	return r.succeeded(), nil
}

// updateExchange bumps the exchange's last-import timestamp when the run
// changed any record or proposal under the IXLAN, and refreshes the
// member count seen in the feed.
func (r *run) updateExchange(ctx context.Context) error {
	st := r.imp.store

	recordsChanged, err := st.NetIXLansChangedSince(ctx, r.ixlan.ID, r.now)
	if err != nil {
		return err
	}
	proposalsChanged, err := st.ProposalsChangedSince(ctx, r.ixlan.ID, r.now)
	if err != nil {
		return err
	}

	var lastImport *time.Time
	if recordsChanged || proposalsChanged {
		lastImport = &r.now
	}

	netCount := len(r.pending)
	if lastImport == nil && r.ixlan.Exchange != nil && r.ixlan.Exchange.IXFNetCount == netCount {
		return nil
	}
	return st.UpdateExchangeImportState(ctx, r.ixlan.ExchangeID, lastImport, netCount)
}

func (r *run) saveAttempt(ctx context.Context) error {
	return r.imp.store.SaveImportAttempt(ctx, r.ixlan.ID, r.attempt.JSON())
}

// failed finishes an unsuccessful run: the attempt log is still saved so
// the last attempt stays inspectable.
func (r *run) failed(ctx context.Context) *Result {
	if r.save {
		if err := r.saveAttempt(ctx); err != nil {
			slog.Error("failed to save attempt log", "ixlan_id", r.ixlan.ID, "error", err)
		}
	}
	return &Result{Success: false, NetCount: len(r.pending), Log: r.attempt}
}

func (r *run) succeeded() *Result {
	return &Result{Success: true, NetCount: len(r.pending), Log: r.attempt}
}

// RunAll reconciles every active IXLAN that publishes a feed. Failures
// are logged per IXLAN; the first internal error aborts the sweep.
func (imp *Importer) RunAll(ctx context.Context, opts RunOptions) error {
	ixlans, err := imp.store.ListIXLansWithFeeds(ctx)
	if err != nil {
		return err
	}

	for _, ixlan := range ixlans {
		result, err := imp.Run(ctx, ixlan.ID, opts)
		if err != nil {
			return fmt.Errorf("import of ixlan %d failed: %w", ixlan.ID, err)
		}
		slog.Info("import run finished",
			"ixlan_id", ixlan.ID,
			"success", result.Success,
			"net_count", result.NetCount)
	}
	return nil
}
