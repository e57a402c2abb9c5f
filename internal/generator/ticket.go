package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

var openTicketStatuses = []any{string(domain.TicketOpen), string(domain.TicketInProgress)}

var customerMessages = map[string][]string{
	"order_status": {
		"Hi, could you tell me where order %s is? I have not heard anything since I placed it.",
		"What is the current status of order %s?",
	},
	"delivery_delay": {
		"Order %s was due days ago and still has not arrived.",
		"My delivery for order %s is late. When can I expect it?",
	},
	"product_issue": {
		"An item in order %s arrived damaged.",
		"The product I received with order %s does not match the description.",
	},
	"payment_issue": {
		"I was charged twice for order %s.",
		"My payment for order %s failed but the money left my account.",
	},
	"return_refund": {
		"I would like to return order %s. How do I start?",
		"I returned order %s two weeks ago and have not been refunded yet.",
	},
}

var agentMessages = map[domain.TicketStatus][]string{
	domain.TicketInProgress: {
		"Thanks for reaching out. I am looking into this now.",
		"I have escalated this to the right team and will update you shortly.",
	},
	domain.TicketResolved: {
		"This should now be sorted. Let us know if anything else comes up.",
		"We have resolved the issue. Thank you for your patience.",
	},
}

// SupportTicket opens tickets against recent orders and works them to
// resolution, with a message posted on every step.
type SupportTicket struct {
	tk   *Toolkit
	open *WorkingSet[domain.Ticket]
}

func NewSupportTicket(tk *Toolkit) *SupportTicket {
	return &SupportTicket{tk: tk, open: NewWorkingSet[domain.Ticket]()}
}

func (g *SupportTicket) Name() string  { return policy.GenSupportTicket }
func (g *SupportTicket) Table() string { return domain.TableTickets }

func (g *SupportTicket) Dependencies() []string {
	return []string{policy.GenUser, policy.GenOrder}
}

func (g *SupportTicket) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *SupportTicket) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableTickets).
		Filter(store.In("status", openTicketStatuses...)).Order("-created_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.open.Reset()
	for _, r := range rows {
		t := domain.TicketFromRecord(r)
		g.open.Put(t.TicketID, t)
	}
	return nil
}

func (g *SupportTicket) Tick(ctx context.Context) error {
	if g.open.Len() > 0 && g.tk.Chance(g.tk.Tables().Tickets.UpdateChance) {
		_, t, _ := g.open.Random(g.tk.Rand())
		return g.advance(ctx, t)
	}
	return g.create(ctx)
}

func (g *SupportTicket) create(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Tickets
	now := tk.Now()
	order, err := tk.Pick(ctx, store.Select(domain.TableOrders, "order_id", "user_id").
		Filter(store.Gte("created_at", now.Add(-p.RecentWindow))).Order("-created_at"))
	if err != nil {
		return err
	}
	t := domain.Ticket{
		TicketID:  tk.NewID(),
		UserID:    order.String("user_id"),
		OrderID:   order.String("order_id"),
		IssueType: p.IssueTypes.Pick(tk.Rand()),
		Priority:  p.Priorities.Pick(tk.Rand()),
		Status:    domain.TicketOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	text := tk.Fake().Sentence(8)
	if templates := customerMessages[t.IssueType]; len(templates) > 0 {
		text = fmt.Sprintf(oneOf(tk, templates), t.OrderID)
	}
	msg := g.message(t.TicketID, domain.SenderCustomer, text, now)

	if err := tk.InsertAll(ctx,
		store.Into(domain.TableTickets, t.Record()),
		store.Into(domain.TableTicketMessages, msg.Record()),
	); err != nil {
		return err
	}
	g.open.Put(t.TicketID, t)
	return errors.Join(
		tk.Emit(ctx, event.TypeTicketCreate, event.TicketOpened{Ticket: t}),
		tk.Emit(ctx, event.TypeTicketMessage, event.TicketMessagePosted{TicketMessage: msg}),
	)
}

// advance moves t one step forward. Resolving attaches a satisfaction score.
func (g *SupportTicket) advance(ctx context.Context, t domain.Ticket) error {
	tk := g.tk
	next, ok := t.Status.Next()
	if !ok {
		g.open.Remove(t.TicketID)
		return fmt.Errorf("%w: ticket %s is %s", ErrNoEligibleUpstream, t.TicketID, t.Status)
	}
	now := tk.Now()
	change := event.TicketStatusChanged{TicketID: t.TicketID, From: t.Status, To: next, UpdatedAt: now}
	fields := store.Record{"status": string(next), "updated_at": now}
	if next == domain.TicketResolved {
		change.ResolvedAt = &now
		fields["resolved_at"] = now
		if score, ok := tk.Tables().Tickets.Satisfaction.PickInt(tk.Rand()); ok {
			change.SatisfactionScore = &score
			fields["satisfaction_score"] = score
		}
	}

	ok, err := tk.Update(ctx, domain.TableTickets, "ticket_id", t.TicketID, fields)
	if err != nil {
		return err
	}
	if !ok || next.Terminal() {
		g.open.Remove(t.TicketID)
	} else {
		t.Status, t.UpdatedAt = next, now
		g.open.Put(t.TicketID, t)
	}
	if !ok {
		return fmt.Errorf("%w: ticket %s is gone", ErrNoEligibleUpstream, t.TicketID)
	}

	msg := g.message(t.TicketID, domain.SenderAgent, oneOf(tk, agentMessages[next]), now)
	if err := tk.Insert(ctx, domain.TableTicketMessages, msg.Record()); err != nil {
		return errors.Join(tk.Emit(ctx, event.TypeTicketUpdate, change), err)
	}
	return errors.Join(
		tk.Emit(ctx, event.TypeTicketUpdate, change),
		tk.Emit(ctx, event.TypeTicketMessage, event.TicketMessagePosted{TicketMessage: msg}),
	)
}

func (g *SupportTicket) message(ticketID string, sender domain.SenderType, text string, now time.Time) domain.TicketMessage {
	return domain.TicketMessage{
		MessageID:   g.tk.NewID(),
		TicketID:    ticketID,
		SenderType:  sender,
		MessageText: text,
		CreatedAt:   now,
	}
}
