package domain

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	// TicketClosed is declared but no transition reaches it.
	TicketClosed TicketStatus = "closed"
)

var ticketFlow = map[TicketStatus]TicketStatus{
	TicketOpen:       TicketInProgress,
	TicketInProgress: TicketResolved,
}

// Next returns the status that follows s, or false when s is terminal.
func (s TicketStatus) Next() (TicketStatus, bool) {
	next, ok := ticketFlow[s]
	return next, ok
}

func (s TicketStatus) Terminal() bool {
	_, ok := ticketFlow[s]
	return !ok
}

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "support_agent"
)

type Ticket struct {
	TicketID          string       `json:"ticket_id"`
	UserID            string       `json:"user_id"`
	OrderID           string       `json:"order_id"`
	IssueType         string       `json:"issue_type"`
	Priority          string       `json:"priority"`
	Status            TicketStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ResolvedAt        *time.Time   `json:"resolved_at"`
	SatisfactionScore *int         `json:"satisfaction_score"`
}

func (t Ticket) Record() store.Record {
	return store.Record{
		"ticket_id":          t.TicketID,
		"user_id":            t.UserID,
		"order_id":           t.OrderID,
		"issue_type":         t.IssueType,
		"priority":           t.Priority,
		"status":             string(t.Status),
		"created_at":         t.CreatedAt,
		"updated_at":         t.UpdatedAt,
		"resolved_at":        t.ResolvedAt,
		"satisfaction_score": t.SatisfactionScore,
	}
}

func TicketFromRecord(r store.Record) Ticket {
	return Ticket{
		TicketID:          r.String("ticket_id"),
		UserID:            r.String("user_id"),
		OrderID:           r.String("order_id"),
		IssueType:         r.String("issue_type"),
		Priority:          r.String("priority"),
		Status:            TicketStatus(r.String("status")),
		CreatedAt:         r.Time("created_at"),
		UpdatedAt:         r.Time("updated_at"),
		ResolvedAt:        r.TimePtr("resolved_at"),
		SatisfactionScore: r.IntPtr("satisfaction_score"),
	}
}

type TicketMessage struct {
	MessageID   string     `json:"message_id"`
	TicketID    string     `json:"ticket_id"`
	SenderType  SenderType `json:"sender_type"`
	MessageText string     `json:"message_text"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (m TicketMessage) Record() store.Record {
	return store.Record{
		"message_id":   m.MessageID,
		"ticket_id":    m.TicketID,
		"sender_type":  string(m.SenderType),
		"message_text": m.MessageText,
		"created_at":   m.CreatedAt,
	}
}
