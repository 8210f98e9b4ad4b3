package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peerix/ixsync/pkg/registry/models"
	"github.com/peerix/ixsync/pkg/ticket"
)

// ticketProposal escalates one proposal to the support queue: a ticket
// for the AC when conflict ticketing is on, plus individual emails to
// the exchange and the network referencing the ticket.
func (r *run) ticketProposal(ctx context.Context, n notification) error {
	if !r.save {
		return nil
	}

	p := n.proposal
	subject := fmt.Sprintf("%s IX-F Conflict Resolution", p)

	// A consolidated proposal is titled after its primary requirement so
	// followups thread onto the original entry's ticket.
	if p.ID != "" {
		req, err := r.imp.store.PrimaryRequirement(ctx, p.ID)
		if err != nil {
			return err
		}
		if req != nil {
			subject = fmt.Sprintf("%s IX-F Conflict Resolution", req)
		}
	}

	if n.ac && r.imp.cfg.TicketOnConflict {
		body := r.renderInline(n, "ac")
		t, err := r.createTicket(ctx, p, subject, body)
		if err != nil {
			return err
		}
		if t != nil && t.TicketID != nil {
			p.TicketID = t.TicketID
			p.TicketRef = t.TicketRef
			if p.ID != "" {
				if err := r.imp.store.AttachTicket(ctx, p.ID, t.TicketID, t.TicketRef); err != nil {
					return err
				}
			}
		}
	}

	if p.TicketRef != nil {
		subject = fmt.Sprintf("%s [#%s]", subject, *p.TicketRef)
	}

	if n.ix && n.exchange != nil {
		body := r.renderInline(n, "ix")
		if err := r.email(ctx, subject, body, n.exchange.TechnicalContacts(), nil, n.exchange); err != nil {
			return err
		}
	}

	if n.net && n.network != nil && p.Action != models.ActionNoop {
		body := r.renderInline(n, "net")
		if err := r.email(ctx, subject, body, n.network.PolicyContacts(), n.network, nil); err != nil {
			return err
		}
	}

	return nil
}

// ticketAgedProposals escalates every unticketed open or conflicted
// proposal older than the configured threshold, across all IXLANs. A
// threshold of zero escalates everything immediately.
func (r *run) ticketAgedProposals(ctx context.Context) error {
	if !r.save {
		return nil
	}

	st := r.imp.store

	// Zero days leaves the cutoff zero, which disables the age gate:
	// proposals escalate in the run that created them.
	var cutoff time.Time
	if days := r.imp.cfg.DaysUntilTicket; days > 0 {
		cutoff = r.now.AddDate(0, 0, -days)
	}

	proposals, err := st.OpenProposalsWithoutTicket(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, p := range proposals {
		network, err := st.GetNetworkByASN(ctx, p.ASN)
		if err != nil && !errors.Is(err, models.ErrNetworkNotFound) {
			return err
		}

		var exchange *models.Exchange
		if p.IXLanID == r.ixlan.ID {
			exchange = r.ixlan.Exchange
		} else if ixlan, err := st.GetIXLan(ctx, p.IXLanID); err == nil {
			exchange = ixlan.Exchange
		}

		typ := string(p.Action)
		if p.Action == models.ActionDelete {
			typ = "remove"
		}

		if err := r.ticketProposal(ctx, notification{
			typ:      typ,
			ac:       true,
			ix:       true,
			net:      true,
			proposal: p,
			network:  network,
			exchange: exchange,
		}); err != nil {
			return err
		}
	}
	return nil
}

// createTicket records and publishes one ticket. A proposal that
// already carries a ticket, or whose subject matches a previously
// published ticket, inherits the external reference so followups land
// on the same ticket. API failures are recorded on the local row and do
// not fail the run.
func (r *run) createTicket(ctx context.Context, p *models.MemberProposal, subject, body string) (*models.Ticket, error) {
	if !r.save {
		return nil, nil
	}

	st := r.imp.store
	full := r.subjectPrefixed(subject)

	if p.TicketID == nil {
		prev, err := st.FindTicketBySubject(ctx, full)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			p.TicketID = prev.TicketID
			p.TicketRef = prev.TicketRef
		}
	}

	t := &models.Ticket{
		Subject:   full,
		Body:      body,
		TicketID:  p.TicketID,
		TicketRef: p.TicketRef,
	}
	if err := st.CreateTicket(ctx, t); err != nil {
		return nil, err
	}

	req := &ticket.Request{Subject: full, Body: body}
	if t.TicketID != nil {
		req.ID = *t.TicketID
	}

	resp, err := r.imp.tickets.Create(ctx, req)
	if err != nil {
		t.Subject = "[FAILED] " + t.Subject
		t.Body = fmt.Sprintf("%s\n\n%v", t.Body, err)
		if uerr := st.UpdateTicket(ctx, t); uerr != nil {
			return nil, uerr
		}
		return t, nil
	}

	published := r.imp.Now().UTC()
	t.TicketID = &resp.ID
	t.TicketRef = &resp.Ref
	t.PublishedAt = &published
	if err := st.UpdateTicket(ctx, t); err != nil {
		return nil, err
	}

	r.imp.metrics.RecordTicket()
	return t, nil
}
