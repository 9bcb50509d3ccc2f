// Package notify carries "something changed in collection X" events from the
// ledger store to whoever keeps a snapshot. Subscribers only learn that a
// refresh is due; they re-read the whole ledger themselves.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Collection string

const (
	Cash     Collection = "cash"
	Expenses Collection = "expenses"
	Market   Collection = "market"
	Meals    Collection = "meals"
	Friends  Collection = "friends"
	Budgets  Collection = "budgets"
	Menu     Collection = "menu"
	Users    Collection = "users"
)

// Collections lists every collection that feeds the snapshot.
var Collections = []Collection{Cash, Expenses, Market, Meals, Friends, Budgets}

// ParseCollection maps a URL segment to a ledger collection.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is a single row change.
type Event struct {
	Collection Collection `json:"collection"`
	Op         Op         `json:"op"`
	ID         string     `json:"id,omitempty"`
	At         time.Time  `json:"at"`
}

// NewEvent stamps a change with the current time.
func NewEvent(c Collection, op Op, id string) Event {
	return Event{Collection: c, Op: op, ID: id, At: time.Now().UTC()}
}

// Publisher announces a change.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Source delivers changes to fn until ctx is done or unsubscribe is called.
type Source interface {
	Subscribe(ctx context.Context, fn func(Event)) (unsubscribe func(), err error)
}

// Encode serializes an event for a wire transport.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses an event received from a wire transport.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Collection == "" {
		return Event{}, fmt.Errorf("decode event: missing collection")
	}
	return ev, nil
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
