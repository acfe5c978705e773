package models

import "time"

// SessionStatus is the lifecycle state of a manual test session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionInProgress, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Terminal reports whether the session is closed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// ItemStatus is the outcome recorded for one checklist item.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPassed  ItemStatus = "passed"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

// Valid reports whether s is one of the four item states.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPassed, ItemFailed, ItemSkipped:
		return true
	}
	return false
}

// Counters are the authoritative per-session tallies.
type Counters struct {
	Total   int `json:"totalItems"`
	Passed  int `json:"passedItems"`
	Failed  int `json:"failedItems"`
	Skipped int `json:"skippedItems"`
}

// Pending is derived: items that carry no counter of their own.
func (c Counters) Pending() int {
	return c.Total - c.Passed - c.Failed - c.Skipped
}

// Apply returns c adjusted by d.
func (c Counters) Apply(d CounterDelta) Counters {
	return Counters{
		Total:   c.Total + d.Total,
		Passed:  c.Passed + d.Passed,
		Failed:  c.Failed + d.Failed,
		Skipped: c.Skipped + d.Skipped,
	}
}

// CounterDelta is a signed adjustment applied to a session's counters in one step.
type CounterDelta struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// IsZero reports whether the delta changes nothing.
func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// Add combines two deltas.
func (d CounterDelta) Add(o CounterDelta) CounterDelta {
	return CounterDelta{
		Total:   d.Total + o.Total,
		Passed:  d.Passed + o.Passed,
		Failed:  d.Failed + o.Failed,
		Skipped: d.Skipped + o.Skipped,
	}
}

// Session is one run-through of a checklist.
type Session struct {
	ID          string        `json:"sessionId"`
	ProjectID   string        `json:"projectId"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt"`
	Counters
	CreatedBy *string `json:"createdBy"`
	Notes     *string `json:"notes"`
}

// Item is one row of a session.
type Item struct {
	ID               int64      `json:"id"`
	SessionID        string     `json:"-"`
	Index            int        `json:"index"`
	Category         string     `json:"category"`
	Title            string     `json:"title"`
	Status           ItemStatus `json:"status"`
	ErrorDescription *string    `json:"errorDescription"`
	IsCustom         bool       `json:"isCustom"`
	TestedAt         *time.Time `json:"testedAt"`
	CardID           *string    `json:"kanbanCardId"`
}

// SessionDetail is a session together with its items ordered by index.
type SessionDetail struct {
	Session
	Items []Item `json:"items"`
}

// SessionFilter narrows a session listing. Empty fields are ignored.
type SessionFilter struct {
	ProjectID string
	Status    SessionStatus
	Limit     int
}

// SessionUpdate is a partial update to a session. Nil fields are left unchanged.
type SessionUpdate struct {
	Status *SessionStatus
	Notes  *string
}
