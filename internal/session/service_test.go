package session

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

type fakeChecklists map[string]checklist.Document

func (f fakeChecklists) Get(projectID string) (checklist.Document, error) {
	doc, ok := f[projectID]
	if !ok {
		return checklist.Document{}, dberrors.NewNotFound("checklist", projectID)
	}
	return doc, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func newTestService(t *testing.T) (*Service, *store.Store, *recorder) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "dashboard.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	docs := fakeChecklists{
		"kanban": checklist.Parse("## Auth\n- [ ] Login works\n### Edge Cases\n- [ ] Bad password\n## Board\n- [ ] Drag card\n"),
	}
	rec := &recorder{}
	return NewService(st, docs, rec, zerolog.Nop()), st, rec
}

func createSession(t *testing.T, svc *Service) *models.SessionDetail {
	t.Helper()
	d, err := svc.CreateSession(context.Background(), CreateInput{ProjectID: "kanban"})
	require.NoError(t, err)
	return d
}

func ptr(s string) *string { return &s }

func assertConserved(t *testing.T, svc *Service, sessionID string) *models.SessionDetail {
	t.Helper()
	d, err := svc.Get(context.Background(), sessionID)
	require.NoError(t, err)
	counts := map[models.ItemStatus]int{}
	for _, it := range d.Items {
		counts[it.Status]++
	}
	assert.Equal(t, len(d.Items), d.Total)
	assert.Equal(t, counts[models.ItemPassed], d.Passed)
	assert.Equal(t, counts[models.ItemFailed], d.Failed)
	assert.Equal(t, counts[models.ItemSkipped], d.Skipped)
	assert.Equal(t, counts[models.ItemPending], d.Pending())
	return d
}

func TestCreateSession(t *testing.T) {
	svc, _, rec := newTestService(t)
	d := createSession(t, svc)

	assert.Regexp(t, `^session-[0-9a-f]{16}$`, d.ID)
	assert.Equal(t, models.SessionInProgress, d.Status)
	assert.Equal(t, 3, d.Total)
	require.Len(t, d.Items, 3)
	assert.Equal(t, "Auth > Edge Cases", d.Items[1].Category)
	assert.Contains(t, rec.events, EventSessionCreated)

	got := assertConserved(t, svc, d.ID)
	assert.Equal(t, 3, got.Pending())
}

func TestCreateSession_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateSession(context.Background(), CreateInput{ProjectID: "bad id!"})
	assert.True(t, dberrors.IsValidation(err))

	_, err = svc.CreateSession(context.Background(), CreateInput{ProjectID: ""})
	assert.True(t, dberrors.IsValidation(err))

	_, err = svc.CreateSession(context.Background(), CreateInput{ProjectID: "unknown"})
	assert.True(t, dberrors.IsNotFound(err))
}

func TestSetItemStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)
	id := d.Items[0].ID

	_, err := svc.SetItemStatus(ctx, id, "failed", nil)
	assert.True(t, dberrors.IsValidation(err))

	item, err := svc.SetItemStatus(ctx, id, "failed", ptr("500 on submit"))
	require.NoError(t, err)
	assert.Equal(t, "500 on submit", *item.ErrorDescription)
	require.NotNil(t, item.TestedAt)
	first := *item.TestedAt

	got := assertConserved(t, svc, d.ID)
	assert.Equal(t, 1, got.Failed)

	item, err = svc.SetItemStatus(ctx, id, "passed", ptr("ignored"))
	require.NoError(t, err)
	assert.Nil(t, item.ErrorDescription)

	got = assertConserved(t, svc, d.ID)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, 1, got.Passed)
	assert.Nil(t, got.Items[0].ErrorDescription)

	item, err = svc.SetItemStatus(ctx, id, "passed", nil)
	require.NoError(t, err)
	assert.False(t, item.TestedAt.Before(first))
	assertConserved(t, svc, d.ID)

	_, err = svc.SetItemStatus(ctx, id, "pending", nil)
	require.NoError(t, err)
	got = assertConserved(t, svc, d.ID)
	assert.Equal(t, 0, got.Passed)

	_, err = svc.SetItemStatus(ctx, 99999, "passed", nil)
	assert.True(t, dberrors.IsNotFound(err))

	_, err = svc.SetItemStatus(ctx, id, "bogus", nil)
	assert.True(t, dberrors.IsValidation(err))
}

func TestSetItemStatus_RandomSequenceConserves(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)

	rng := rand.New(rand.NewSource(7))
	statuses := []string{"pending", "passed", "failed", "skipped"}
	for i := 0; i < 40; i++ {
		item := d.Items[rng.Intn(len(d.Items))]
		st := statuses[rng.Intn(len(statuses))]
		_, err := svc.SetItemStatus(ctx, item.ID, st, ptr("reason"))
		require.NoError(t, err)
		assertConserved(t, svc, d.ID)
	}
}

func TestSetItemStatus_ConcurrentUpdatesOnOneSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for _, it := range d.Items {
			wg.Add(1)
			go func(id int64, round int) {
				defer wg.Done()
				st := []string{"passed", "skipped", "pending"}[round%3]
				_, err := svc.SetItemStatus(ctx, id, st, nil)
				assert.NoError(t, err)
			}(it.ID, round)
		}
	}
	wg.Wait()
	assertConserved(t, svc, d.ID)
}

func TestAddCustomItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)

	_, err := svc.AddCustomItem(ctx, d.ID, "Auth", "")
	assert.True(t, dberrors.IsValidation(err))

	_, err = svc.AddCustomItem(ctx, "session-missing", "", "x")
	assert.True(t, dberrors.IsNotFound(err))

	item, err := svc.AddCustomItem(ctx, d.ID, "", "Logout from two tabs")
	require.NoError(t, err)
	assert.Equal(t, 3, item.Index)
	assert.Equal(t, "Custom", item.Category)
	assert.True(t, item.IsCustom)
	assert.Equal(t, models.ItemPending, item.Status)

	got := assertConserved(t, svc, d.ID)
	assert.Equal(t, 4, got.Total)
}

func TestAddCustomItem_EmptySessionStartsAtZero(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	sess := &models.Session{ID: "session-empty", ProjectID: "kanban", Status: models.SessionInProgress}
	require.NoError(t, st.CreateSession(ctx, sess, nil))

	item, err := svc.AddCustomItem(ctx, "session-empty", "Misc", "first")
	require.NoError(t, err)
	assert.Equal(t, 0, item.Index)
}

func TestRemoveItem_Custom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)

	item, err := svc.AddCustomItem(ctx, d.ID, "Custom", "temp")
	require.NoError(t, err)
	_, err = svc.SetItemStatus(ctx, item.ID, "failed", ptr("broken"))
	require.NoError(t, err)

	res, err := svc.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	got := assertConserved(t, svc, d.ID)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 0, got.Failed)

	_, err = svc.RemoveItem(ctx, item.ID)
	assert.True(t, dberrors.IsNotFound(err))
}

func TestRemoveItem_ChecklistItemIsSkippedOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)
	id := d.Items[0].ID

	_, err := svc.SetItemStatus(ctx, id, "passed", nil)
	require.NoError(t, err)

	res, err := svc.RemoveItem(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	got := assertConserved(t, svc, d.ID)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 0, got.Passed)

	res, err = svc.RemoveItem(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	got = assertConserved(t, svc, d.ID)
	assert.Equal(t, 1, got.Skipped)
}

func TestSetSessionStatus(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	d := createSession(t, svc)

	_, err := svc.SetSessionStatus(ctx, d.ID, nil, nil)
	assert.True(t, dberrors.IsValidation(err))

	_, err = svc.SetSessionStatus(ctx, d.ID, ptr("paused"), nil)
	assert.True(t, dberrors.IsValidation(err))

	_, err = svc.SetSessionStatus(ctx, "session-missing", ptr("completed"), nil)
	assert.True(t, dberrors.IsNotFound(err))

	sess, err := svc.SetSessionStatus(ctx, d.ID, nil, ptr("halfway"))
	require.NoError(t, err)
	assert.Equal(t, "halfway", *sess.Notes)
	assert.Nil(t, sess.CompletedAt)

	sess, err = svc.SetSessionStatus(ctx, d.ID, ptr("completed"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
	assert.Contains(t, rec.events, EventSessionUpdated)

	_, err = svc.SetSessionStatus(ctx, d.ID, ptr("in_progress"), nil)
	assert.True(t, dberrors.IsValidation(err))

	sess, err = svc.SetSessionStatus(ctx, d.ID, ptr("completed"), ptr("final notes"))
	require.NoError(t, err)
	assert.Equal(t, "final notes", *sess.Notes)
	assert.Equal(t, models.SessionCompleted, sess.Status)
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	createSession(t, svc)
	createSession(t, svc)

	sessions, err := svc.List(ctx, models.SessionFilter{ProjectID: "kanban"})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	_, err = svc.List(ctx, models.SessionFilter{ProjectID: "../etc"})
	assert.True(t, dberrors.IsValidation(err))
}
