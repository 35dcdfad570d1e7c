package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexNumber is a numeric field that the backend serves inconsistently:
// depending on the record it arrives as an integer, a decimal, or a numeric
// string. It decodes whichever form is present and normalizes to float64.
type FlexNumber float64

// UnmarshalJSON accepts 150, 150.5 or "150". Empty strings decode to zero.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", str, err)
		}
		*n = FlexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = FlexNumber(v)
	return nil
}

// MarshalJSON always emits the normalized numeric form.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// Float64 returns the normalized value.
func (n FlexNumber) Float64() float64 { return float64(n) }

// Int returns the normalized value truncated to an integer.
func (n FlexNumber) Int() int { return int(n) }

// Event represents a single event in the Talkeys catalog. Events are decoded
// from the backend response and never mutated afterwards; a new fetch
// supersedes the previous records wholesale.
type Event struct {
	ID                  string     `json:"_id"`
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	TicketPrice         FlexNumber `json:"ticketPrice"`
	Mode                string     `json:"mode"`
	Location            string     `json:"location,omitempty"`
	Duration            string     `json:"duration"`
	Slots               int        `json:"slots"`
	Visibility          string     `json:"visibility"`
	StartDate           string     `json:"startDate"`
	StartTime           string     `json:"startTime"`
	EndRegistrationDate string     `json:"endRegistrationDate,omitempty"`
	TotalSeats          FlexNumber `json:"totalSeats"`
	Description         string     `json:"eventDescription,omitempty"`
	Photographs         []string   `json:"photographs,omitempty"`
	Prizes              string     `json:"prizes,omitempty"`
	IsTeamEvent         bool       `json:"isTeamEvent"`
	IsPaid              bool       `json:"isPaid"`
	IsLive              bool       `json:"isLive"`
	OrganizerName       string     `json:"organizerName,omitempty"`
	OrganizerEmail      string     `json:"organizerEmail,omitempty"`
	OrganizerContact    string     `json:"organizerContact,omitempty"`
}

// Same reports whether two events refer to the same catalog entry.
// Identity is defined by ID alone; differing fields do not matter.
func (e Event) Same(other Event) bool {
	return e.ID == other.ID
}

// CatalogSnapshot is an immutable copy of the full event list together with
// the time it was fetched. Consumers never observe a partially updated list;
// a snapshot is replaced wholesale or not at all.
type CatalogSnapshot struct {
	Events    []Event
	FetchedAt time.Time
}

// Age returns how long ago the snapshot was fetched.
func (s CatalogSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// EventFetcher defines the transport port to the remote catalog backend.
type EventFetcher interface {
	FetchAll(ctx context.Context) ([]Event, error)
	FetchByID(ctx context.Context, id string) (*Event, error)
}
