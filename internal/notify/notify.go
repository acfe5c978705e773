// Package notify delivers dashboard events to people: live updates to
// connected browsers over WebSocket and optional Slack messages.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Level describes the urgency of a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Message is a human-facing notification.
type Message struct {
	Level   Level
	Title   string
	Text    string
	Project string
	Link    string
	Error   error
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// MultiNotifier fans out to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier skips nil notifiers.
func NewMultiNotifier(ns ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range ns {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify calls every notifier and returns the last error.
func (m *MultiNotifier) Notify(ctx context.Context, msg Message) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Len returns the number of notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// LogNotifier logs notifications.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (l *LogNotifier) Notify(_ context.Context, m Message) error {
	ev := l.logger.Info()
	if m.Level != LevelInfo {
		ev = l.logger.Warn()
	}
	ev.Str("level", string(m.Level)).
		Str("title", m.Title).
		Str("project", m.Project).
		AnErr("cause", m.Error).
		Msg(m.Text)
	return nil
}

// Format renders m as Slack mrkdwn.
func Format(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*", levelEmoji(m.Level), m.Title)
	if m.Project != "" {
		fmt.Fprintf(&b, " (`%s`)", m.Project)
	}
	if m.Text != "" {
		b.WriteString("\n")
		b.WriteString(m.Text)
	}
	if m.Link != "" {
		fmt.Fprintf(&b, "\n<%s|Open>", m.Link)
	}
	if m.Error != nil {
		fmt.Fprintf(&b, "\n```\n%v\n```", m.Error)
	}
	return b.String()
}

func levelEmoji(l Level) string {
	switch l {
	case LevelCritical:
		return "🚨"
	case LevelWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
