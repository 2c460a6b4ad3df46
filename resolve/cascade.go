// Package resolve implements the fallback cascade that turns one entity
// name into a structured knowledge-base record. Each source resolver runs
// the same fixed-order stage list; a stage either produces a usable record
// (terminating the cascade early) or the cascade advances. "Found but
// useless" and "not found" share one trigger: a record whose summary is
// below the configured minimum length does not terminate the cascade.
package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/kb"
)

// StageFunc attempts one resolution strategy for one entity. It returns a
// candidate record (possibly partial, possibly nil) or an error classified
// by the taxonomy in errors: transient and malformed errors advance the
// cascade, throttling never reaches here (the rate limiter absorbs it).
type StageFunc func(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error)

// Stage is one ordered strategy in the fallback chain.
type Stage struct {
	Name    kb.Stage
	Attempt StageFunc
}

// Cascade runs the ordered stage list for one source.
type Cascade struct {
	Source           kb.Source
	MinSummaryLength int
	Stages           []Stage
	Logger           *zap.SugaredLogger
}

// NewCascade creates a cascade. logger may be nil.
func NewCascade(source kb.Source, minSummaryLen int, stages []Stage, logger *zap.SugaredLogger) *Cascade {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cascade{
		Source:           source,
		MinSummaryLength: minSummaryLen,
		Stages:           stages,
		Logger:           logger,
	}
}

// Run executes stages in order and returns the terminal record. The
// returned record is always non-nil unless ctx is cancelled, in which
// case (nil, ctx.Err()) is returned and the caller leaves the source slot
// unwritten so a cancelled cascade never publishes a half-built record.
//
// Attempt counting: every stage except CACHE increments the counter, so a
// primary hit reports 1 and an exhausted cascade reports the configured
// maximum. Provenance and the attempt count survive to the terminal state.
func (c *Cascade) Run(ctx context.Context, ec *kb.EntityContext) (*kb.SourceRecord, error) {
	attempts := 0
	var tried []string
	var partial *kb.SourceRecord

	for _, stage := range c.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if stage.Name != kb.StageCache {
			attempts++
		}
		tried = append(tried, string(stage.Name))

		rec, err := stage.Attempt(ctx, ec)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Distinguish pipeline cancellation from a per-call
				// timeout: only the former abandons the cascade
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				err = errors.Mark(err, errors.ErrTimeout)
			}
			c.Logger.Debugw("Cascade stage failed",
				"entity", ec.Name,
				"source", c.Source,
				"stage", stage.Name,
				"transient", errors.IsTransient(err),
				"error", err,
			)
			continue
		}
		if rec == nil {
			continue
		}

		if rec.Usable(c.MinSummaryLength) {
			rec.Provenance = stage.Name
			rec.Attempts = attempts
			return rec, nil
		}

		// Keep the best partial: earliest stages win per field, so a
		// later fallback never clobbers identifying data already seen
		if partial == nil {
			partial = rec.Clone()
		} else {
			partial.Merge(rec)
		}
	}

	// Exhausted. Terminal not_found retains partial fields (including a
	// too-short summary) for diagnostics; status stays not_found so
	// downstream consumers never mistake it for usable.
	terminal := &kb.SourceRecord{
		Status:     kb.StatusNotFound,
		Provenance: kb.StageNotFound,
		Attempts:   attempts,
		Note:       "exhausted cascade: " + strings.Join(tried, ", "),
	}
	if partial != nil {
		terminal.Merge(partial)
	}
	return terminal, nil
}
