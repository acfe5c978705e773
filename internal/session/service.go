package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// Event names published by the service.
const (
	EventSessionCreated = "session:created"
	EventSessionUpdated = "session:updated"
	EventItemUpdated    = "item:updated"
)

// Checklists provides parsed checklists by project.
type Checklists interface {
	Get(projectID string) (checklist.Document, error)
}

// Publisher receives fire-and-forget change notifications.
type Publisher interface {
	Publish(event string, data any)
}

// Service implements session and item operations. Every mutation that touches
// counters runs in one store transaction.
type Service struct {
	store      *store.Store
	checklists Checklists
	events     Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a session service. events may be nil.
func NewService(st *store.Store, checklists Checklists, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		store:      st,
		checklists: checklists,
		events:     events,
		logger:     logger.With().Str("component", "sessions").Logger(),
		now:        time.Now,
	}
}

// CreateInput starts a session.
type CreateInput struct {
	ProjectID string
	CreatedBy *string
	Notes     *string
}

// RemoveResult reports which removal path was taken.
type RemoveResult struct {
	Deleted bool `json:"deleted,omitempty"`
	Skipped bool `json:"skipped,omitempty"`
}

// NewSessionID returns "session-" followed by 16 random hex characters.
func NewSessionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "session-" + hex.EncodeToString(b)
}

// CreateSession seeds a new in-progress session with one pending item per checklist item.
func (s *Service) CreateSession(ctx context.Context, in CreateInput) (*models.SessionDetail, error) {
	if !models.ValidProjectID(in.ProjectID) {
		return nil, dberrors.NewValidation("projectId", "Invalid or missing project ID")
	}
	doc, err := s.checklists.Get(in.ProjectID)
	if err != nil {
		return nil, err
	}

	sess := models.Session{
		ID:        NewSessionID(),
		ProjectID: in.ProjectID,
		Status:    models.SessionInProgress,
		StartedAt: s.now().UTC().Truncate(time.Millisecond),
		Counters:  SeedCounters(len(doc.Items)),
		CreatedBy: in.CreatedBy,
		Notes:     in.Notes,
	}
	items := make([]models.Item, len(doc.Items))
	for i, ci := range doc.Items {
		items[i] = models.Item{
			Index:    ci.Index,
			Category: ci.Category,
			Title:    ci.Title,
			Status:   models.ItemPending,
		}
	}

	if err := s.store.CreateSession(ctx, &sess, items); err != nil {
		return nil, dberrors.Persistence("create session", err)
	}

	s.logger.Info().Str("session_id", sess.ID).Str("project_id", sess.ProjectID).Int("items", len(items)).Msg("Session created")
	s.publish(EventSessionCreated, sess)
	return &models.SessionDetail{Session: sess, Items: items}, nil
}

// Get returns a session with its items.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, dberrors.Persistence("get session", err)
	}
	if sess == nil {
		return nil, dberrors.NewNotFound("session", sessionID)
	}
	items, err := s.store.ListItems(ctx, sessionID)
	if err != nil {
		return nil, dberrors.Persistence("list items", err)
	}
	return &models.SessionDetail{Session: *sess, Items: items}, nil
}

// List returns sessions newest first.
func (s *Service) List(ctx context.Context, f models.SessionFilter) ([]models.Session, error) {
	if f.ProjectID != "" && !models.ValidProjectID(f.ProjectID) {
		return nil, dberrors.NewValidation("projectId", "Invalid project ID")
	}
	sessions, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, dberrors.Persistence("list sessions", err)
	}
	return sessions, nil
}

// SetItemStatus records an outcome for an item and moves the session counters
// by the matching transition. The tested time is stamped on every call.
func (s *Service) SetItemStatus(ctx context.Context, itemID int64, status string, errorDescription *string) (*models.Item, error) {
	newStatus, desc, err := ValidateItemStatus(status, errorDescription)
	if err != nil {
		return nil, err
	}

	var updated *models.Item
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return dberrors.NewNotFound("item", strconv.FormatInt(itemID, 10))
		}

		now := s.now().UTC().Truncate(time.Millisecond)
		if err := tx.SetItemStatus(ctx, itemID, newStatus, desc, now); err != nil {
			return err
		}
		if err := tx.AdjustCounters(ctx, item.SessionID, Transition(item.Status, newStatus)); err != nil {
			return err
		}

		item.Status = newStatus
		item.ErrorDescription = desc
		item.TestedAt = &now
		updated = item
		return nil
	})
	if err != nil {
		return nil, dberrors.Persistence("set item status", err)
	}

	s.publish(EventItemUpdated, updated)
	return updated, nil
}

// AddCustomItem appends an ad hoc pending item after the session's highest index.
func (s *Service) AddCustomItem(ctx context.Context, sessionID, category, title string) (*models.Item, error) {
	category, title, err := ValidateCustomItem(category, title)
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		SessionID: sessionID,
		Category:  category,
		Title:     title,
		Status:    models.ItemPending,
		IsCustom:  true,
	}
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return dberrors.NewNotFound("session", sessionID)
		}
		if item.Index, err = tx.NextItemIndex(ctx, sessionID); err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		return tx.AdjustCounters(ctx, sessionID, models.CounterDelta{Total: 1})
	})
	if err != nil {
		return nil, dberrors.Persistence("add custom item", err)
	}

	s.publish(EventItemUpdated, item)
	return item, nil
}

// RemoveItem deletes a custom item or reclassifies a checklist item as skipped.
// Removing an already skipped checklist item leaves the counters unchanged.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) (RemoveResult, error) {
	var res RemoveResult
	var removed *models.Item
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return dberrors.NewNotFound("item", strconv.FormatInt(itemID, 10))
		}

		r := RemovalOf(item.Status, item.IsCustom)
		if r.Delete {
			if err := tx.DeleteItem(ctx, itemID); err != nil {
				return err
			}
			res.Deleted = true
		} else {
			now := s.now().UTC().Truncate(time.Millisecond)
			if err := tx.SetItemStatus(ctx, itemID, models.ItemSkipped, nil, now); err != nil {
				return err
			}
			item.Status = models.ItemSkipped
			item.ErrorDescription = nil
			item.TestedAt = &now
			res.Skipped = true
		}
		removed = item
		return tx.AdjustCounters(ctx, item.SessionID, r.Delta)
	})
	if err != nil {
		return res, dberrors.Persistence("remove item", err)
	}

	s.publish(EventItemUpdated, removed)
	return res, nil
}

// SetSessionStatus updates a session's status and/or notes. Completed and
// cancelled are terminal: a closed session only accepts notes.
func (s *Service) SetSessionStatus(ctx context.Context, sessionID string, status, notes *string) (*models.Session, error) {
	upd, err := ValidateSessionUpdate(status, notes)
	if err != nil {
		return nil, err
	}

	var sess *models.Session
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if current == nil {
			return dberrors.NewNotFound("session", sessionID)
		}
		if upd.Status != nil && current.Status.Terminal() {
			if *upd.Status != current.Status {
				return dberrors.NewValidation("status", "Session is already "+string(current.Status))
			}
			upd.Status = nil
		}
		if upd.Status == nil && upd.Notes == nil {
			sess = current
			return nil
		}
		sess, err = tx.UpdateSession(ctx, sessionID, upd, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, dberrors.Persistence("update session", err)
	}

	s.logger.Info().Str("session_id", sessionID).Str("status", string(sess.Status)).Msg("Session updated")
	s.publish(EventSessionUpdated, sess)
	return sess, nil
}

func (s *Service) publish(event string, data any) {
	if s.events != nil {
		s.events.Publish(event, data)
	}
}
