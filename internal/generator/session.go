package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

var socialSources = []string{"facebook", "instagram", "twitter", "tiktok"}

// Session opens browsing sessions for active users, keeps them alive and
// ends them.
type Session struct {
	tk   *Toolkit
	open *WorkingSet[domain.Session]
}

func NewSession(tk *Toolkit) *Session {
	return &Session{tk: tk, open: NewWorkingSet[domain.Session]()}
}

func (g *Session) Name() string           { return policy.GenSession }
func (g *Session) Table() string          { return domain.TableSessions }
func (g *Session) Dependencies() []string { return []string{policy.GenUser} }

func (g *Session) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *Session) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableSessions).
		Filter(store.IsNull("ended_at")).Order("-started_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.open.Reset()
	for _, r := range rows {
		s := domain.SessionFromRecord(r)
		g.open.Put(s.SessionID, s)
	}
	return nil
}

func (g *Session) Tick(ctx context.Context) error {
	p := g.tk.Tables().Sessions
	if g.open.Len() > 0 && g.tk.Chance(p.TouchChance) {
		_, s, _ := g.open.Random(g.tk.Rand())
		if g.tk.Chance(p.EndChance) {
			return g.end(ctx, s)
		}
		return g.tk.Emit(ctx, event.TypeSessionActivity, event.SessionChanged{Session: s})
	}
	return g.start(ctx)
}

func (g *Session) start(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Sessions
	user, err := tk.Pick(ctx, store.Select(domain.TableUsers, "user_id").
		Filter(store.Eq("is_active", true)))
	if err != nil {
		return err
	}
	now := tk.Now()
	device := p.DeviceTypes.Pick(tk.Rand())
	s := domain.Session{
		SessionID:      tk.NewID(),
		UserID:         user.String("user_id"),
		StartedAt:      now,
		DeviceType:     device,
		OSInfo:         oneOf(tk, p.OperatingSys[device]),
		BrowserInfo:    p.Browsers.Pick(tk.Rand()),
		IPAddress:      tk.Fake().IPv4(),
		ReferralSource: p.Referrals.Pick(tk.Rand()),
		CreatedAt:      now,
	}
	s.UTMSource, s.UTMMedium, s.UTMCampaign = g.utm(s.ReferralSource)

	if err := tk.Insert(ctx, domain.TableSessions, s.Record()); err != nil {
		return err
	}
	g.open.Put(s.SessionID, s)
	return tk.Emit(ctx, event.TypeSessionStart, event.SessionChanged{Session: s})
}

// end closes s after a sampled session length.
func (g *Session) end(ctx context.Context, s domain.Session) error {
	tk, d := g.tk, g.tk.Tables().Sessions.Duration
	ended := domain.UTC(s.StartedAt.Add(domain.SessionLength(tk.Rand(), d.Typical, d.Min, d.Max)))
	ok, err := tk.Update(ctx, domain.TableSessions, "session_id", s.SessionID, store.Record{"ended_at": ended})
	if err != nil {
		return err
	}
	g.open.Remove(s.SessionID)
	if !ok {
		return fmt.Errorf("%w: session %s is gone", ErrNoEligibleUpstream, s.SessionID)
	}
	s.EndedAt = &ended
	return tk.Emit(ctx, event.TypeSessionEnd, event.SessionChanged{Session: s})
}

// utm derives campaign tags from the referral source. Organic and direct
// traffic carries none.
func (g *Session) utm(referral string) (source, medium, campaign *string) {
	tk := g.tk
	switch referral {
	case "paid_search":
		return ptr("google"), ptr("cpc"), ptr(tk.Fake().Word() + "_search")
	case "social":
		return ptr(oneOf(tk, socialSources)), ptr("social"), ptr(tk.Fake().Word() + "_promo")
	case "email":
		return ptr("newsletter"), ptr("email"), ptr(tk.Fake().Word() + "_newsletter")
	}
	return nil, nil, nil
}

func oneOf(tk *Toolkit, options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[tk.Rand().IntN(len(options))]
}

func ptr[T any](v T) *T { return &v }
