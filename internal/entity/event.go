package entity

import (
	"time"
)

type Event struct {
	ID            int64     `json:"id" db:"id"`
	VenueID       int64     `json:"venue_id" db:"venue_id"`
	HostID        int64     `json:"host_id" db:"host_id"`
	Name          string    `json:"name" db:"name"`
	StartTime     time.Time `json:"start_time" db:"start_time"`
	EndTime       time.Time `json:"end_time" db:"end_time"`
	SlotDuration  Minutes   `json:"slot_duration" db:"slot_duration"`
	SetupDuration Minutes   `json:"setup_duration" db:"setup_duration"`
	Active        bool      `json:"active" db:"active"`
	SignupOpen    bool      `json:"is_signup_open" db:"is_signup_open"`
	Types         []string  `json:"event_types" db:"event_types"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// EventDetails is an event joined with its venue and host.
type EventDetails struct {
	Event
	VenueName     string `json:"venue_name"`
	VenueTimezone string `json:"venue_timezone"`
	HostName      string `json:"host_name"`
}

type Venue struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Address  string `json:"address,omitempty" db:"address"`
	Timezone string `json:"timezone" db:"timezone"`
}

// Location falls back to def when the venue timezone is missing or unknown.
func (v *Venue) Location(def *time.Location) *time.Location {
	if v == nil || v.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return def
	}
	return loc
}

// IsHostedBy reports whether identity is the authenticated host of the event.
func (e *Event) IsHostedBy(identity Identity) bool {
	return identity.Kind == IdentityUser && identity.UserID == e.HostID
}
