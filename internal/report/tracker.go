package report

import (
	"context"
	"errors"
)

// Card is one bug report submitted to a tracker.
type Card struct {
	Title       string
	Description string
	ProjectID   string
	Category    string
	FailCount   int
}

// CardRef identifies a created card.
type CardRef struct {
	ID  string
	URL string
}

// Tracker creates bug cards in an external issue tracker.
type Tracker interface {
	Name() string
	CreateCard(ctx context.Context, card Card) (*CardRef, error)
}

// ErrNoTracker is returned by Disabled for every card.
var ErrNoTracker = errors.New("no bug tracker configured")

// Disabled is the tracker used when TRACKER=none. Every category is reported as errored.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) CreateCard(context.Context, Card) (*CardRef, error) {
	return nil, ErrNoTracker
}
