// Package pipeline runs the per-request portfolio load: tenant identity,
// backend fetch, normalization and the portfolio_opened event.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/folio/internal/analytics"
	"github.com/kalambet/folio/internal/backend"
	"github.com/kalambet/folio/internal/profile"
	"github.com/kalambet/folio/internal/tenant"
)

const (
	msgFetchFailed = "Failed to fetch portfolio data"
	msgNoData      = "No portfolio data found"
)

// Status classifies a load outcome.
type Status int

const (
	StatusOK Status = iota
	StatusUnresolved
	StatusError
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnresolved:
		return "unresolved"
	case StatusError:
		return "error"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Load. Profile is set only for StatusOK.
type Result struct {
	Status   Status
	Identity tenant.Identity
	Profile  *profile.Profile
	Message  string
	Err      error
	Duration time.Duration
}

// Fetcher loads a tenant's raw record.
type Fetcher interface {
	Fetch(ctx context.Context, username string) backend.FetchResult
}

// Loader wires the fetcher to the normalizer. It holds no per-request
// state; concurrent Loads are independent.
type Loader struct {
	fetcher Fetcher
	sink    analytics.Sink
	logger  *slog.Logger
}

// NewLoader creates a Loader. A nil sink discards events.
func NewLoader(fetcher Fetcher, sink analytics.Sink) *Loader {
	if sink == nil {
		sink = analytics.Nop{}
	}
	return &Loader{fetcher: fetcher, sink: sink, logger: slog.Default()}
}

// run tracks whether the request that started a load still wants its
// result. Once the request context ends the run is dead for good.
type run struct {
	ctx context.Context
}

func (r run) alive() bool { return r.ctx.Err() == nil }

// Load runs resolve -> fetch -> normalize for one request. A result that
// arrives after ctx is done is discarded and reported as StatusCanceled.
func (l *Loader) Load(ctx context.Context, id tenant.Identity) (res Result) {
	start := time.Now()
	res.Identity = id
	defer func() { res.Duration = time.Since(start) }()

	if !id.Valid || id.Username == "" {
		res.Status = StatusUnresolved
		return res
	}

	r := run{ctx: ctx}
	fetched := l.fetcher.Fetch(ctx, id.Username)
	if !r.alive() {
		l.logger.Debug("portfolio load abandoned", "username", id.Username)
		res.Status = StatusCanceled
		res.Err = context.Cause(ctx)
		return res
	}

	if !fetched.Success {
		res.Status = StatusError
		res.Err = fetched.Err
		res.Message = msgFetchFailed
		if fetched.Err != nil {
			res.Message = fetched.Err.Error()
		}
		l.logger.Warn("portfolio fetch failed", "username", id.Username, "error", fetched.Err)
		return res
	}
	if fetched.Data == nil {
		res.Status = StatusError
		res.Message = msgNoData
		return res
	}

	p := profile.Normalize(*fetched.Data)
	res.Status = StatusOK
	res.Profile = &p

	// The event is keyed on the backend's userName when it has one.
	user := fetched.Data.UserName.String()
	if user == "" {
		user = id.Username
	}
	if err := l.sink.Capture(context.WithoutCancel(ctx), analytics.PortfolioOpened(user)); err != nil {
		l.logger.Warn("analytics capture failed", "username", user, "error", err)
	}
	return res
}
