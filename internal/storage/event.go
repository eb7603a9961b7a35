package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Event struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Type        string    `json:"type" db:"type"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location" db:"location"`
	Date        Date      `json:"date" db:"date"`
	OwnerName   string    `json:"name" db:"owner_name"`
	OwnerID     string    `json:"userId" db:"owner_id"`
	URL         string    `json:"url" db:"url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Date is a point in time with an explicit unknown state. A stored record
// whose date cannot be recovered stays "unknown" instead of being silently
// replaced with the current instant.
type Date struct {
	Time  time.Time
	Known bool
}

func KnownDate(t time.Time) Date {
	return Date{Time: t.UTC(), Known: true}
}

// NormalizeDate recovers a Date from its stored textual form. Valid RFC3339
// values round-trip to the same instant; empty or corrupt values normalize
// to the unknown state.
func NormalizeDate(raw string) Date {
	if raw == "" {
		return Date{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return Date{}
	}
	return KnownDate(t)
}

func (d Date) String() string {
	if !d.Known {
		return ""
	}
	return d.Time.Format(time.RFC3339Nano)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse date: %w", err)
	}
	if raw == nil {
		*d = Date{}
		return nil
	}
	*d = NormalizeDate(*raw)
	return nil
}

// Value makes unknown dates NULL in SQL backends.
func (d Date) Value() (driver.Value, error) {
	if !d.Known {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = KnownDate(v)
	case string:
		*d = NormalizeDate(v)
	case []byte:
		*d = NormalizeDate(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// SortEventsByDate orders events by date descending with unknown dates last.
func SortEventsByDate(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Date, events[j].Date
		if a.Known != b.Known {
			return a.Known
		}
		if !a.Known {
			return false
		}
		return a.Time.After(b.Time)
	})
}
