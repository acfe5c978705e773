package report

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/metrics"
	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/notify"
	"github.com/p-blackswan/test-dashboard/internal/requestid"
	"github.com/p-blackswan/test-dashboard/internal/retry"
	"github.com/p-blackswan/test-dashboard/internal/store"
)

// EventReportCreated is published after a report with at least one category.
const EventReportCreated = "report:created"

// DefaultTimeout bounds one tracker submission, retries included.
const DefaultTimeout = 15 * time.Second

// Publisher receives fire-and-forget change notifications.
type Publisher interface {
	Publish(event string, data any)
}

// CardResult is the outcome for one category.
type CardResult struct {
	Category  string `json:"category"`
	FailCount int    `json:"failCount"`
	CardID    string `json:"cardId,omitempty"`
	CardURL   string `json:"cardUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is returned by Generate.
type Result struct {
	Message      string       `json:"message"`
	CardsCreated int          `json:"cardsCreated"`
	Cards        []CardResult `json:"cards"`
}

// Generator creates bug cards for the failed items of a session.
type Generator struct {
	store    *store.Store
	tracker  Tracker
	events   Publisher
	notifier notify.Notifier
	metrics  *metrics.Metrics
	timeout  time.Duration
	retry    retry.Config
	logger   zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

func WithTimeout(d time.Duration) Option { return func(g *Generator) { g.timeout = d } }
func WithRetry(cfg retry.Config) Option { return func(g *Generator) { g.retry = cfg } }
func WithPublisher(p Publisher) Option { return func(g *Generator) { g.events = p } }
func WithNotifier(n notify.Notifier) Option { return func(g *Generator) { g.notifier = n } }
func WithMetrics(m *metrics.Metrics) Option { return func(g *Generator) { g.metrics = m } }

// NewGenerator creates a report generator. A nil tracker behaves like Disabled.
func NewGenerator(st *store.Store, tracker Tracker, logger zerolog.Logger, opts ...Option) *Generator {
	if tracker == nil {
		tracker = Disabled{}
	}
	g := &Generator{
		store:   st,
		tracker: tracker,
		timeout: DefaultTimeout,
		retry:   retry.DefaultConfig(),
		logger:  logger.With().Str("component", "report").Str("tracker", tracker.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate submits one card per failed category. Tracker failures are
// reported per category and never fail the call.
func (g *Generator) Generate(ctx context.Context, sessionID string) (*Result, error) {
	log := requestid.Logger(ctx, g.logger).With().Str("session_id", sessionID).Logger()

	sess, err := g.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, dberrors.Persistence("get session", err)
	}
	if sess == nil {
		return nil, dberrors.NewNotFound("session", sessionID)
	}

	failed, err := g.store.FailedItems(ctx, sessionID)
	if err != nil {
		return nil, dberrors.Persistence("list failed items", err)
	}
	if len(failed) == 0 {
		return &Result{Message: "No failed items", Cards: []CardResult{}}, nil
	}

	all, err := g.store.ListItems(ctx, sessionID)
	if err != nil {
		return nil, dberrors.Persistence("list items", err)
	}

	groups := GroupFailures(failed, all)
	res := &Result{Cards: make([]CardResult, 0, len(groups))}
	for _, grp := range groups {
		cr := g.submit(ctx, log, sess, grp)
		if cr.CardID != "" {
			res.CardsCreated++
		}
		res.Cards = append(res.Cards, cr)
	}
	res.Message = fmt.Sprintf("Created %d bug cards", res.CardsCreated)

	log.Info().
		Int("categories", len(groups)).
		Int("cards_created", res.CardsCreated).
		Msg("report generated")

	if g.events != nil {
		g.events.Publish(EventReportCreated, map[string]any{
			"sessionId": sess.ID,
			"projectId": sess.ProjectID,
			"cards":     res.Cards,
		})
	}
	g.notify(ctx, sess, res)
	return res, nil
}

func (g *Generator) submit(ctx context.Context, log zerolog.Logger, sess *models.Session, grp Group) CardResult {
	cr := CardResult{Category: grp.Category, FailCount: len(grp.Failed)}
	card := Card{
		Title:       CardTitle(grp.Category, len(grp.Failed)),
		Description: Render(sess, grp),
		ProjectID:   sess.ProjectID,
		Category:    grp.Category,
		FailCount:   len(grp.Failed),
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	cfg := g.retry
	cfg.Retryable = createRetryable
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Str("category", grp.Category).Msg("retrying card creation")
	}
	ref, err := retry.DoValue(cctx, cfg, func(ctx context.Context) (*CardRef, error) {
		return g.tracker.CreateCard(ctx, card)
	})
	if err == nil && (ref == nil || ref.ID == "") {
		err = dberrors.NewUpstream(g.tracker.Name(), 0, "response carried no card id")
	}
	if err != nil {
		g.metrics.RecordCard(g.tracker.Name(), "error", time.Since(start))
		log.Error().Err(err).Str("category", grp.Category).Msg("failed to create bug card")
		cr.Error = cardError(err)
		return cr
	}
	g.metrics.RecordCard(g.tracker.Name(), "created", time.Since(start))

	ids := make([]int64, len(grp.Failed))
	for i, it := range grp.Failed {
		ids[i] = it.ID
	}
	if err := g.store.SetItemsCardID(ctx, ids, ref.ID); err != nil {
		// The card exists upstream either way.
		log.Error().Err(err).Str("card_id", ref.ID).Msg("failed to record card id on items")
	}

	cr.CardID = ref.ID
	cr.CardURL = ref.URL
	return cr
}

func cardError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Tracker request timed out"
	}
	var up *dberrors.UpstreamError
	if errors.As(err, &up) && up.StatusCode > 0 {
		return "Failed to create card"
	}
	return err.Error()
}

func (g *Generator) notify(ctx context.Context, sess *models.Session, res *Result) {
	if g.notifier == nil || res.CardsCreated == 0 {
		return
	}
	var lines []string
	for _, c := range res.Cards {
		if c.CardID == "" {
			continue
		}
		line := fmt.Sprintf("• %s (%d)", c.Category, c.FailCount)
		if c.CardURL != "" {
			line += " " + c.CardURL
		}
		lines = append(lines, line)
	}
	msg := notify.Message{
		Level:   notify.LevelWarning,
		Title:   res.Message,
		Text:    fmt.Sprintf("Session %s\n%s", sess.ID, strings.Join(lines, "\n")),
		Project: sess.ProjectID,
	}

	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := g.notifier.Notify(nctx, msg); err != nil {
			g.logger.Warn().Err(err).Msg("failed to send report notification")
		}
	}()
}

// createRetryable limits card retries to failures where the tracker cannot
// have filed the card: rate limiting and connections that were never
// established. A 5xx may follow a successful insert, so it is not retried.
func createRetryable(err error) bool {
	var upErr *dberrors.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, dberrors.ErrRateLimit) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
