// Package session implements manual test sessions: seeding from a checklist,
// recording item outcomes and keeping the per-session counters in step.
package session

import (
	"strings"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/models"
)

type transition struct {
	from, to models.ItemStatus
}

// transitions maps every (old, new) item status pair to the counter change it
// causes. pending has no counter of its own.
var transitions = map[transition]models.CounterDelta{
	{models.ItemPending, models.ItemPending}: {},
	{models.ItemPending, models.ItemPassed}:  {Passed: +1},
	{models.ItemPending, models.ItemFailed}:  {Failed: +1},
	{models.ItemPending, models.ItemSkipped}: {Skipped: +1},

	{models.ItemPassed, models.ItemPending}: {Passed: -1},
	{models.ItemPassed, models.ItemPassed}:  {},
	{models.ItemPassed, models.ItemFailed}:  {Passed: -1, Failed: +1},
	{models.ItemPassed, models.ItemSkipped}: {Passed: -1, Skipped: +1},

	{models.ItemFailed, models.ItemPending}: {Failed: -1},
	{models.ItemFailed, models.ItemPassed}:  {Failed: -1, Passed: +1},
	{models.ItemFailed, models.ItemFailed}:  {},
	{models.ItemFailed, models.ItemSkipped}: {Failed: -1, Skipped: +1},

	{models.ItemSkipped, models.ItemPending}: {Skipped: -1},
	{models.ItemSkipped, models.ItemPassed}:  {Skipped: -1, Passed: +1},
	{models.ItemSkipped, models.ItemFailed}:  {Skipped: -1, Failed: +1},
	{models.ItemSkipped, models.ItemSkipped}: {},
}

// Transition returns the counter delta for moving an item from one status to another.
func Transition(from, to models.ItemStatus) models.CounterDelta {
	return transitions[transition{from, to}]
}

// counterOf is the delta that removes one item of the given status.
func counterOf(s models.ItemStatus) models.CounterDelta {
	return Transition(s, models.ItemPending)
}

// Removal describes what deleting an item does.
type Removal struct {
	// Delete is true when the row goes away; otherwise it is reclassified as skipped.
	Delete bool
	Delta  models.CounterDelta
}

// RemovalOf decides how an item is removed. Custom items are deleted and leave
// the totals; checklist items are kept and forced to skipped.
func RemovalOf(status models.ItemStatus, isCustom bool) Removal {
	if isCustom {
		return Removal{Delete: true, Delta: counterOf(status).Add(models.CounterDelta{Total: -1})}
	}
	return Removal{Delta: Transition(status, models.ItemSkipped)}
}

// SeedCounters are the counters of a freshly created session with n pending items.
func SeedCounters(n int) models.Counters {
	return models.Counters{Total: n}
}

// ValidateItemStatus checks an item status update and returns the error
// description to store, which is only kept for failed items.
func ValidateItemStatus(status string, errorDescription *string) (models.ItemStatus, *string, error) {
	s := models.ItemStatus(status)
	if !s.Valid() {
		return "", nil, dberrors.NewValidation("status", "Status must be one of pending, passed, failed, skipped")
	}
	if s != models.ItemFailed {
		return s, nil, nil
	}
	if errorDescription == nil || *errorDescription == "" {
		return "", nil, dberrors.NewValidation("errorDescription", "Error description required for failed items")
	}
	desc := *errorDescription
	return s, &desc, nil
}

// DefaultCustomCategory is used for ad hoc items added without a category.
const DefaultCustomCategory = "Custom"

// ValidateCustomItem checks a custom item and applies the category default.
func ValidateCustomItem(category, title string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", dberrors.NewValidation("title", "Title is required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCustomCategory
	}
	return category, title, nil
}

// ValidateSessionUpdate checks a session update. At least one of status and
// notes must be present.
func ValidateSessionUpdate(status, notes *string) (models.SessionUpdate, error) {
	var upd models.SessionUpdate
	if status != nil && *status != "" {
		s := models.SessionStatus(*status)
		if !s.Valid() {
			return upd, dberrors.NewValidation("status", "Status must be one of in_progress, completed, cancelled")
		}
		upd.Status = &s
	}
	if notes != nil {
		n := *notes
		upd.Notes = &n
	}
	if upd.Status == nil && upd.Notes == nil {
		return upd, dberrors.NewValidation("", "No updates provided")
	}
	return upd, nil
}
