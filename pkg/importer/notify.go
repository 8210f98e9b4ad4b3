package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peerix/ixsync/pkg/mailer"
	"github.com/peerix/ixsync/pkg/registry/models"
)

// notification is one queued item awaiting consolidation: a proposal, a
// type tag and per-recipient flags.
type notification struct {
	typ string // add | modify | remove | resolved | conflict | protocol-conflict

	ac  bool
	ix  bool
	net bool

	proposal *models.MemberProposal
	network  *models.Network
	exchange *models.Exchange
}

func (r *run) queueNotification(p *models.MemberProposal, network *models.Network, typ string, ac, ix, net bool) {
	r.notifications = append(r.notifications, notification{
		typ:      typ,
		ac:       ac,
		ix:       ix,
		net:      net,
		proposal: p,
		network:  network,
		exchange: r.ixlan.Exchange,
	})
}

// queueProtocolConflict queues the dedicated protocol-conflict notice.
// No proposal is persisted and nothing is applied for the conflict
// itself.
func (r *run) queueProtocolConflict(id models.Identity, network *models.Network) {
	p := &models.MemberProposal{IXLanID: r.ixlan.ID}
	p.SetIdentity(id)
	r.queueNotification(p, network, "protocol-conflict", false, true, true)
}

// consolidatedTarget is one (recipient, entity) mailbox being filled
// during consolidation.
type consolidatedTarget struct {
	contacts []string
	count    int
	network  *models.Network
	exchange *models.Exchange

	sections map[string]*mailer.ConsolidatedSection
	order    []string
}

func (t *consolidatedTarget) section(other string) *mailer.ConsolidatedSection {
	s, ok := t.sections[other]
	if !ok {
		s = &mailer.ConsolidatedSection{Other: other}
		t.sections[other] = s
		t.order = append(t.order, other)
	}
	return s
}

func (t *consolidatedTarget) push(typ, action, message string) {
	// The other-entity key is fixed per target in a single-IXLAN run;
	// sections exist to keep multi-run consolidation shapes identical.
	s := t.section(t.order[len(t.order)-1])
	switch {
	case typ == "protocol-conflict":
		s.ProtocolConflict = message
	case action == string(models.ActionAdd):
		s.Adds = append(s.Adds, message)
		t.count++
	case action == string(models.ActionDelete):
		s.Deletes = append(s.Deletes, message)
		t.count++
	default:
		s.Modifies = append(s.Modifies, message)
		t.count++
	}
}

// notifyProposals consolidates the queued notifications into one
// message per (recipient, other entity) pair and dispatches them.
// Preview runs send nothing.
func (r *run) notifyProposals(ctx context.Context) error {
	if !r.save {
		return nil
	}

	netTargets := map[uint32]*consolidatedTarget{}
	ixTargets := map[uint]*consolidatedTarget{}
	var netOrder []uint32
	var ixOrder []uint

	for _, n := range r.notifications {
		// Resolved notifications carry no ask; their side effects
		// already happened.
		if n.typ == "resolved" {
			continue
		}

		p := n.proposal

		// Hidden requirements of other proposals stay out of the fanout.
		if p.RequirementOfID != nil {
			continue
		}

		var ixContacts, netContacts []string
		if n.exchange != nil {
			ixContacts = n.exchange.TechnicalContacts()
		}
		if n.network != nil {
			netContacts = n.network.PolicyContacts()
		}

		// With no usable contact point on either side the proposal goes
		// straight to a ticket.
		if len(ixContacts) == 0 || len(netContacts) == 0 {
			r.ticketProposal(ctx, n)
		}

		action := string(p.Action)
		if n.typ == "remove" {
			action = string(models.ActionDelete)
		}

		exchangeName := ""
		if n.exchange != nil {
			exchangeName = n.exchange.Name
		}

		if n.net && n.network != nil {
			target, ok := netTargets[n.network.ASN]
			if !ok {
				target = &consolidatedTarget{
					contacts: netContacts,
					network:  n.network,
					sections: map[string]*mailer.ConsolidatedSection{},
				}
				netTargets[n.network.ASN] = target
				netOrder = append(netOrder, n.network.ASN)
			}
			target.section(exchangeName)
			target.push(n.typ, action, r.renderInline(n, "net"))
		}

		if n.ix && n.exchange != nil {
			target, ok := ixTargets[n.exchange.ID]
			if !ok {
				target = &consolidatedTarget{
					contacts: ixContacts,
					exchange: n.exchange,
					sections: map[string]*mailer.ConsolidatedSection{},
				}
				ixTargets[n.exchange.ID] = target
				ixOrder = append(ixOrder, n.exchange.ID)
			}
			target.section(fmt.Sprintf("AS%d", p.ASN))
			target.push(n.typ, action, r.renderInline(n, "ix"))
		}
	}

	for _, id := range ixOrder {
		if err := r.dispatchConsolidated(ctx, "ix", ixTargets[id]); err != nil {
			return err
		}
	}
	for _, asn := range netOrder {
		if err := r.dispatchConsolidated(ctx, "net", netTargets[asn]); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) dispatchConsolidated(ctx context.Context, recipient string, target *consolidatedTarget) error {
	if len(target.contacts) == 0 || target.count == 0 {
		return nil
	}

	cctx := mailer.ConsolidatedContext{
		Recipient:  recipient,
		Count:      target.count,
		TicketDays: r.imp.cfg.DaysUntilTicket,
	}
	for _, other := range target.order {
		cctx.Sections = append(cctx.Sections, *target.sections[other])
	}

	var subject string
	if recipient == "net" {
		cctx.Entity = fmt.Sprintf("AS%d", target.network.ASN)
		subject = fmt.Sprintf(
			"Action May Be Needed: IX-F data mismatch between AS%d and one or more exchanges",
			target.network.ASN)
	} else {
		cctx.Entity = target.exchange.Name
		subject = fmt.Sprintf(
			"Action May Be Needed: IX-F data mismatch between %s and one or more networks",
			target.exchange.Name)
	}

	message, err := mailer.RenderConsolidated(cctx)
	if err != nil {
		return err
	}

	return r.email(ctx, subject, message, target.contacts, target.network, target.exchange)
}

func (r *run) renderInline(n notification, recipient string) string {
	p := n.proposal

	pctx := mailer.ProposalContext{
		Recipient: recipient,
		ASN:       p.ASN,
		IPv4:      p.IPAddr4,
		IPv6:      p.IPAddr6,
		Speed:     p.Speed,
		IsRSPeer:  p.IsRSPeer,
		Reason:    p.Reason,
	}
	if p.Error != nil {
		pctx.Error = *p.Error
	}
	if n.exchange != nil {
		pctx.Exchange = n.exchange.Name
	}
	if n.network != nil {
		pctx.Network = n.network.Name
	}
	return mailer.RenderInline(n.typ, pctx)
}

// email records and dispatches one message. The email log row is
// written even when the per-recipient notify flag suppresses the actual
// send; a suppressed message has no sent timestamp.
func (r *run) email(ctx context.Context, subject, message string, recipients []string, network *models.Network, exchange *models.Exchange) error {
	if !r.save || len(recipients) == 0 {
		return nil
	}

	st := r.imp.store
	logged := r.subjectPrefixed(subject)
	var logs []*models.EmailLog

	if network != nil {
		el := &models.EmailLog{
			Subject:    logged,
			Message:    message,
			Recipients: strings.Join(recipients, ","),
			NetworkID:  &network.ID,
		}
		if err := st.CreateEmailLog(ctx, el); err != nil {
			return err
		}
		logs = append(logs, el)

		if !r.imp.cfg.NotifyNetOnConflict {
			return nil
		}
	}

	if exchange != nil {
		el := &models.EmailLog{
			Subject:    logged,
			Message:    message,
			Recipients: strings.Join(recipients, ","),
			ExchangeID: &exchange.ID,
		}
		if err := st.CreateEmailLog(ctx, el); err != nil {
			return err
		}
		logs = append(logs, el)

		if !r.imp.cfg.NotifyIXOnConflict {
			return nil
		}
	}

	if err := r.imp.sender.Send(ctx, &mailer.Message{
		From:    r.imp.cfg.MailFrom,
		To:      recipients,
		Subject: logged,
		Body:    message,
	}); err != nil {
		return err
	}

	if network != nil {
		r.imp.metrics.RecordNotification("net")
	}
	if exchange != nil {
		r.imp.metrics.RecordNotification("ix")
	}

	sent := r.imp.Now().UTC()
	for _, el := range logs {
		if err := st.MarkEmailSent(ctx, el.ID, sent); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) subjectPrefixed(subject string) string {
	prefix := r.imp.cfg.MailSubjectPrefix
	if prefix == "" {
		return "[IX-F] " + subject
	}
	return prefix + "[IX-F] " + subject
}

// notifyError notifies the exchange and the AC about a feed-level
// error, at most once per configured period per IXLAN.
func (r *run) notifyError(ctx context.Context, errMsg string) {
	if !r.save {
		return
	}

	if r.ixlan.ImportErrorNotified != nil {
		elapsed := r.now.Sub(*r.ixlan.ImportErrorNotified).Hours()
		if elapsed < float64(r.imp.cfg.ParseErrorNotificationPeriod) {
			return
		}
	}

	st := r.imp.store
	if err := st.SetIXLanErrorNotified(ctx, r.ixlan.ID, r.now, errMsg); err != nil {
		slog.Error("failed to stamp feed error notification",
			"ixlan_id", r.ixlan.ID, "error", err)
		return
	}
	notified := r.now
	r.ixlan.ImportErrorNotified = &notified
	r.ixlan.ImportError = &errMsg

	exchangeName := ""
	if r.ixlan.Exchange != nil {
		exchangeName = r.ixlan.Exchange.Name
	}

	message, err := mailer.RenderSourceError(mailer.SourceErrorContext{
		Exchange: exchangeName,
		Error:    errMsg,
		Date:     r.now.Format(time.DateTime),
	})
	if err != nil {
		slog.Error("failed to render source error notification", "error", err)
		return
	}

	subject := "Could not process IX-F Data"

	synthetic := &models.MemberProposal{IXLanID: r.ixlan.ID}
	if _, err := r.createTicket(ctx, synthetic, subject, message); err != nil {
		slog.Error("failed to create feed error ticket", "error", err)
	}

	if r.ixlan.Exchange != nil {
		contacts := r.ixlan.Exchange.TechnicalContacts()
		if err := r.email(ctx, subject, message, contacts, nil, r.ixlan.Exchange); err != nil {
			slog.Error("failed to notify exchange about feed error", "error", err)
		}
	}
}
