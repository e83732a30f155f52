package cache

import (
	"fmt"
	"time"

	"github.com/kvachev/fx-rate-service/internal/config"
)

// TTLPolicy computes how long a cached table may live. The upstream source
// publishes once a day at a known local hour; a cached table must never
// outlive the next publication, and is additionally capped by a short
// ceiling during business hours and a longer one off-hours.
type TTLPolicy struct {
	loc             *time.Location
	publicationHour int
	buffer          time.Duration
	businessStart   int
	businessEnd     int
	businessCeiling time.Duration
	offHoursCeiling time.Duration
}

// NewTTLPolicy builds the policy from configuration. The timezone name must
// resolve against the host tz database.
func NewTTLPolicy(cfg *config.Config) (*TTLPolicy, error) {
	loc, err := time.LoadLocation(cfg.RateTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid rate timezone %q: %w", cfg.RateTimezone, err)
	}
	return &TTLPolicy{
		loc:             loc,
		publicationHour: cfg.PublicationHour,
		buffer:          cfg.PublicationBuffer,
		businessStart:   cfg.BusinessHoursStart,
		businessEnd:     cfg.BusinessHoursEnd,
		businessCeiling: cfg.BusinessTTLCeiling,
		offHoursCeiling: cfg.OffHoursTTLCeiling,
	}, nil
}

// TTLAt returns the TTL for a table cached at the given instant:
// min(time until the next publication, the applicable ceiling).
func (p *TTLPolicy) TTLAt(now time.Time) time.Duration {
	local := now.In(p.loc)

	next := time.Date(local.Year(), local.Month(), local.Day(), p.publicationHour, 0, 0, 0, p.loc).Add(p.buffer)
	if !local.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	remaining := next.Sub(local)

	ceiling := p.offHoursCeiling
	if p.inBusinessHours(local) {
		ceiling = p.businessCeiling
	}

	if remaining < ceiling {
		return remaining
	}
	return ceiling
}

func (p *TTLPolicy) inBusinessHours(local time.Time) bool {
	h := local.Hour()
	return h >= p.businessStart && h < p.businessEnd
}
