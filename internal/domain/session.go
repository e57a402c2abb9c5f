package domain

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// SessionStatus is derived from EndedAt.
type SessionStatus string

const (
	SessionStarted SessionStatus = "started"
	SessionEnded   SessionStatus = "ended"
)

type Session struct {
	SessionID      string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	DeviceType     string     `json:"device_type"`
	OSInfo         string     `json:"os_info"`
	BrowserInfo    string     `json:"browser_info"`
	IPAddress      string     `json:"ip_address"`
	ReferralSource string     `json:"referral_source"`
	UTMSource      *string    `json:"utm_source"`
	UTMMedium      *string    `json:"utm_medium"`
	UTMCampaign    *string    `json:"utm_campaign"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s Session) Status() SessionStatus {
	if s.EndedAt != nil {
		return SessionEnded
	}
	return SessionStarted
}

// SessionLength draws a session length in minutes from Exp(typical) clamped
// to [min, max].
func SessionLength(r *rand.Rand, typical, min, max float64) time.Duration {
	minutes := r.ExpFloat64() * typical
	minutes = math.Max(min, math.Min(max, minutes))
	return time.Duration(minutes * float64(time.Minute))
}

func (s Session) Record() store.Record {
	return store.Record{
		"session_id":      s.SessionID,
		"user_id":         s.UserID,
		"started_at":      s.StartedAt,
		"ended_at":        s.EndedAt,
		"device_type":     s.DeviceType,
		"os_info":         s.OSInfo,
		"browser_info":    s.BrowserInfo,
		"ip_address":      s.IPAddress,
		"referral_source": s.ReferralSource,
		"utm_source":      s.UTMSource,
		"utm_medium":      s.UTMMedium,
		"utm_campaign":    s.UTMCampaign,
		"created_at":      s.CreatedAt,
	}
}

func SessionFromRecord(r store.Record) Session {
	return Session{
		SessionID:      r.String("session_id"),
		UserID:         r.String("user_id"),
		StartedAt:      r.Time("started_at"),
		EndedAt:        r.TimePtr("ended_at"),
		DeviceType:     r.String("device_type"),
		OSInfo:         r.String("os_info"),
		BrowserInfo:    r.String("browser_info"),
		IPAddress:      r.String("ip_address"),
		ReferralSource: r.String("referral_source"),
		UTMSource:      r.StringPtr("utm_source"),
		UTMMedium:      r.StringPtr("utm_medium"),
		UTMCampaign:    r.StringPtr("utm_campaign"),
		CreatedAt:      r.Time("created_at"),
	}
}
