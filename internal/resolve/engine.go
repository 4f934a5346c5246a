// Package resolve drives one media item from URL to final artifact: probe or
// reuse the track catalog, rank quality profiles, then walk the
// profile -> client -> auth fallback tree until one yt-dlp invocation
// succeeds.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"yt-resolver/internal/clientpref"
	"yt-resolver/internal/model"
	"yt-resolver/internal/profile"
	"yt-resolver/internal/workspace"
	"yt-resolver/internal/ytdlp"
)

const (
	ReasonCanceled    = "canceled"
	ReasonInterrupted = "interrupted_previous_run"
	ReasonNoProfile   = "no_viable_profile"
	ReasonProbeFailed = "probe_failed"
	ReasonProbeParse  = "probe_parse_error"
	ReasonExhausted   = "exhausted"
	ReasonDowngrade   = "downgrade_refused"
	ReasonFinalize    = "finalize_failed"
	ReasonStorage     = "storage_error"
)

const maxErrorLen = 1200

type Options struct {
	// Clients is the canonical trial order. It is never mutated.
	Clients         []model.ClientIdentity
	Creds           ytdlp.Credentials
	Settings        ytdlp.Settings
	Ranker          profile.Options
	RefuseDowngrade bool

	// Timeout bounds each download invocation; ProbeTimeout each probe.
	Timeout      time.Duration
	ProbeTimeout time.Duration

	// AttemptsPerSecond paces invocations; 0 disables pacing.
	AttemptsPerSecond float64
	SubtitleLangs     []string
	FatalPatterns     []string
	RecoverPatterns   []string
}

type Engine struct {
	ws         workspace.Workspace
	invoker    ytdlp.Invoker
	opts       Options
	tracker    *clientpref.Tracker
	classifier ytdlp.Classifier
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
	newRunID   func() string
	progress   func(ytdlp.OutputStream, string)
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithRunIDs(next func() string) Option {
	return func(e *Engine) {
		if next != nil {
			e.newRunID = next
		}
	}
}

// WithProgress receives every output line of every invocation.
func WithProgress(fn func(ytdlp.OutputStream, string)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithClientStore overrides where client preferences live. The workspace
// is used by default.
func WithClientStore(s clientpref.Store) Option {
	return func(e *Engine) {
		e.tracker = clientpref.NewTracker(s)
	}
}

func New(ws workspace.Workspace, invoker ytdlp.Invoker, opts Options, options ...Option) (*Engine, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if len(opts.Clients) == 0 {
		return nil, fmt.Errorf("at least one client identity is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Minute
	}
	opts.Clients = clientpref.Reorder(opts.Clients, "")

	e := &Engine{
		ws:         ws,
		invoker:    invoker,
		opts:       opts,
		tracker:    clientpref.NewTracker(ws),
		classifier: ytdlp.NewClassifier(opts.FatalPatterns, opts.RecoverPatterns),
		logger:     zap.NewNop(),
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
	if opts.AttemptsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.AttemptsPerSecond), 1)
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Request is one resolution. Destination may be nil to keep the result in
// the work directory only.
type Request struct {
	URL          string
	IntendedName string
	Destination  workspace.Destination
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e *Engine) pace(ctx context.Context) error {
	if e.limiter == nil {
		return ctx.Err()
	}
	return e.limiter.Wait(ctx)
}

func (e *Engine) invoke(ctx context.Context, inv ytdlp.Invocation) ytdlp.Result {
	if e.progress != nil {
		inv.Progress = e.progress
	}
	return e.invoker.Invoke(ctx, inv)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
