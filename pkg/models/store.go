package models

import "time"

// QuietHours is a store-local window during which sends are deferred to the
// window end, never dropped. Hours are in the store's timezone.
type QuietHours struct {
	StartHour int `json:"start_hour"` // default 21
	EndHour   int `json:"end_hour"`   // default 8
}

// DefaultQuietHours is the 21:00-08:00 window applied when a store has none.
func DefaultQuietHours() QuietHours {
	return QuietHours{StartHour: 21, EndHour: 8}
}

// Contains reports whether t (already in store-local time) falls inside the
// window. Windows may wrap midnight.
func (q QuietHours) Contains(t time.Time) bool {
	h := t.Hour()
	if q.StartHour == q.EndHour {
		return false
	}

	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}

	return h >= q.StartHour || h < q.EndHour
}

// NextEnd returns the first instant at or after t when the window closes.
func (q QuietHours) NextEnd(t time.Time) time.Time {
	end := time.Date(t.Year(), t.Month(), t.Day(), q.EndHour, 0, 0, 0, t.Location())
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}

	return end
}

// Store is a merchant tenant. The ingestion pipeline resolves stores by
// upstream shop domain.
type Store struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"     validate:"required,min=3"`
	Domain     string     `json:"domain"   validate:"required,fqdn"`
	Timezone   string     `json:"timezone"` // IANA name, e.g. "America/New_York"
	QuietHours QuietHours `json:"quiet_hours"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Location resolves the store timezone, falling back to UTC.
func (s *Store) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
