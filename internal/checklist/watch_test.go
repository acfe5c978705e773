package checklist

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_InvalidatesAndNotifies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kanban.md", "## Board\n- [ ] Drag\n")
	c := NewCatalog(dir, nil, 4, zerolog.Nop())

	_, err := c.Get("kanban")
	require.NoError(t, err)

	changes := make(chan Change, 4)
	w, err := NewWatcher(c, func(ch Change) { changes <- ch }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, dir, "kanban.md", "## Board\n- [ ] Drag\n- [ ] Drop\n")

	select {
	case ch := <-changes:
		assert.Equal(t, "kanban.md", ch.Filename)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}

	doc, err := c.Get("kanban")
	require.NoError(t, err)
	assert.Len(t, doc.Items, 2)
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(dir, nil, 4, zerolog.Nop())

	changes := make(chan Change, 4)
	w, err := NewWatcher(c, func(ch Change) { changes <- ch }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, dir, "notes.txt", "hello")

	select {
	case ch := <-changes:
		t.Fatalf("unexpected change %+v", ch)
	case <-time.After(200 * time.Millisecond):
	}
}
