package domain

import "time"

// Timestamps is embedded in every persisted entity.
// DateUpdated on a Book or Volume is also bumped by descendant writes.
type Timestamps struct {
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`
}

// InitTimestamps sets both timestamps to at.
func (t *Timestamps) InitTimestamps(at time.Time) {
	at = at.UTC()
	t.DateCreated = at
	t.DateUpdated = at
}

// Touch advances DateUpdated to at. It never moves the timestamp backwards.
func (t *Timestamps) Touch(at time.Time) {
	at = at.UTC()
	if at.After(t.DateUpdated) {
		t.DateUpdated = at
	}
}
