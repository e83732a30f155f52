package cache

import (
	"testing"
	"time"

	"github.com/kvachev/fx-rate-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(t *testing.T) *TTLPolicy {
	t.Helper()
	policy, err := NewTTLPolicy(&config.Config{
		RateTimezone:       "UTC",
		PublicationHour:    16,
		PublicationBuffer:  5 * time.Minute,
		BusinessHoursStart: 8,
		BusinessHoursEnd:   18,
		BusinessTTLCeiling: 30 * time.Minute,
		OffHoursTTLCeiling: 6 * time.Hour,
	})
	require.NoError(t, err)
	return policy
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestTTLBusinessHoursCeiling(t *testing.T) {
	policy := newTestPolicy(t)

	// Mid-morning: hours remain until publication, the business ceiling wins.
	assert.Equal(t, 30*time.Minute, policy.TTLAt(at(10, 0)))
}

func TestTTLNeverOutlivesPublication(t *testing.T) {
	policy := newTestPolicy(t)

	// 15:50, publication at 16:05: only 15 minutes remain.
	assert.Equal(t, 15*time.Minute, policy.TTLAt(at(15, 50)))

	// Just after publication the next one is tomorrow; ceiling applies again.
	assert.Equal(t, 30*time.Minute, policy.TTLAt(at(16, 10)))
}

func TestTTLOffHoursCeiling(t *testing.T) {
	policy := newTestPolicy(t)

	// 20:00: off-hours ceiling, publication is 20h05m away.
	assert.Equal(t, 6*time.Hour, policy.TTLAt(at(20, 0)))

	// 03:00: publication at 16:05 is 13h05m away, still capped at 6h.
	assert.Equal(t, 6*time.Hour, policy.TTLAt(at(3, 0)))
}

func TestTTLOffHoursBoundedByPublication(t *testing.T) {
	policy := newTestPolicy(t)

	// With the ceiling lifted, midnight caches still expire at publication.
	policy.offHoursCeiling = 24 * time.Hour
	assert.Equal(t, 16*time.Hour+5*time.Minute, policy.TTLAt(at(0, 0)))
}

func TestTTLTimezoneConversion(t *testing.T) {
	policy, err := NewTTLPolicy(&config.Config{
		RateTimezone:       "Europe/Berlin",
		PublicationHour:    16,
		PublicationBuffer:  0,
		BusinessHoursStart: 8,
		BusinessHoursEnd:   18,
		BusinessTTLCeiling: 24 * time.Hour,
		OffHoursTTLCeiling: 24 * time.Hour,
	})
	require.NoError(t, err)

	// 14:00 UTC in winter is 15:00 in Berlin: one hour to publication.
	jan := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, policy.TTLAt(jan))
}

func TestTTLInvalidTimezone(t *testing.T) {
	_, err := NewTTLPolicy(&config.Config{RateTimezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}
