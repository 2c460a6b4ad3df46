// Package batch orchestrates entity resolution across sources: it
// partitions entities into endpoint-sized batches, dispatches them over a
// bounded worker pool one source phase at a time, and aggregates outcomes
// and statistics. Sources run sequentially relative to each other because
// later sources consume identifiers seeded by earlier ones.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loreweave/loreweave/errors"
	"github.com/loreweave/loreweave/kb"
	"github.com/loreweave/loreweave/resolve"
)

const (
	// DefaultWorkers bounds concurrent batch dispatches per source phase.
	DefaultWorkers = 4
	// DefaultOutageThreshold is how many hard batch failures within one
	// source phase declare a source-wide outage.
	DefaultOutageThreshold = 3
)

// Orchestrator drives one resolution pass over an ordered entity list.
type Orchestrator struct {
	resolvers       []resolve.Resolver // priority order
	workers         int
	outageThreshold int
	logger          *zap.SugaredLogger

	timeNow func() time.Time
}

// New creates an orchestrator over the given resolvers in priority order.
// logger may be nil.
func New(resolvers []resolve.Resolver, workers, outageThreshold int, logger *zap.SugaredLogger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if outageThreshold <= 0 {
		outageThreshold = DefaultOutageThreshold
	}
	return &Orchestrator{
		resolvers:       resolvers,
		workers:         workers,
		outageThreshold: outageThreshold,
		logger:          logger,
		timeNow:         time.Now,
	}
}

// Result is the outcome of one pass: exactly one context per input
// entity, in input order, plus aggregate statistics.
type Result struct {
	Contexts []*kb.EntityContext
	Stats    *Stats
}

// Run resolves every entity against every source. Per-entity failures
// become records inside the contexts; the returned error is non-nil only
// on cancellation, and even then the partial result is consistent and
// inspectable.
func (o *Orchestrator) Run(ctx context.Context, entities []kb.Entity, language string) (*Result, error) {
	started := o.timeNow()

	contexts := make([]*kb.EntityContext, len(entities))
	for i, e := range entities {
		contexts[i] = kb.NewEntityContext(e, language)
	}

	result := &Result{Contexts: contexts, Stats: NewStats()}
	for _, resolver := range o.resolvers {
		if err := ctx.Err(); err != nil {
			result.Stats.finalize(contexts, o.timeNow().Sub(started))
			return result, err
		}
		phaseStart := o.timeNow()
		o.runPhase(ctx, resolver, contexts)
		result.Stats.PhaseDurations[resolver.Source()] = o.timeNow().Sub(phaseStart)
	}

	result.Stats.finalize(contexts, o.timeNow().Sub(started))
	return result, ctx.Err()
}

// runPhase resolves all not-yet-attempted entities against one source.
// Batches dispatch concurrently over the worker pool; the phase is a
// barrier, so every batch finishes before the next source starts and its
// seeded identifiers are visible to that source.
func (o *Orchestrator) runPhase(ctx context.Context, resolver resolve.Resolver, contexts []*kb.EntityContext) {
	source := resolver.Source()

	var pending []*kb.EntityContext
	for _, ec := range contexts {
		if !ec.IsAttempted(source) {
			pending = append(pending, ec)
		}
	}
	if len(pending) == 0 {
		return
	}

	batches := Partition(pending, resolver.BatchSize())
	o.logger.Infow("Starting source phase",
		"source", source,
		"entities", len(pending),
		"batches", len(batches),
		"workers", o.workers,
	)

	outage := &outageDetector{threshold: o.outageThreshold}
	jobs := make(chan []*kb.EntityContext)
	var wg sync.WaitGroup

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				if ctx.Err() != nil || outage.tripped() {
					continue
				}
				err := resolver.Resolve(ctx, batch)
				if err == nil {
					outage.recordSuccess()
					continue
				}
				if errors.Is(err, context.Canceled) {
					continue
				}
				o.logger.Warnw("Batch failed",
					"source", source,
					"entities", len(batch),
					"error", err,
				)
				if errors.Is(err, errors.ErrServiceUnavailable) && outage.recordFailure() {
					o.logger.Errorw("Source-wide outage declared, skipping remaining batches",
						"source", source,
						"failures", o.outageThreshold,
					)
				}
			}
		}()
	}

	for _, batch := range batches {
		jobs <- batch
	}
	close(jobs)
	wg.Wait()

	// Entities left unattempted (skipped batches, hard batch failures)
	// get an explicit error record; no entity is ever silently dropped.
	// Cancelled passes leave slots unwritten instead, keeping the partial
	// state inspectable.
	if ctx.Err() != nil {
		return
	}
	for _, ec := range pending {
		if ec.IsAttempted(source) {
			continue
		}
		rec := &kb.SourceRecord{
			Status:   kb.StatusError,
			Note:     "source unavailable, resolution skipped",
			Attempts: 0,
		}
		if err := ec.SetRecord(source, rec); err != nil {
			o.logger.Errorw("Record slot conflict", "entity", ec.Name, "source", source, "error", err)
			continue
		}
		ec.MarkAttempted(source)
	}
}

// Partition splits entities into batches of at most size, preserving
// order. A non-positive size yields one batch.
func Partition(entities []*kb.EntityContext, size int) [][]*kb.EntityContext {
	if size <= 0 {
		return [][]*kb.EntityContext{entities}
	}
	var batches [][]*kb.EntityContext
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		batches = append(batches, entities[start:end])
	}
	return batches
}

// outageDetector trips after threshold hard failures without an
// intervening success within one source phase.
type outageDetector struct {
	threshold int

	mu       sync.Mutex
	failures int
	out      bool
}

func (d *outageDetector) recordSuccess() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.out {
		d.failures = 0
	}
}

// recordFailure reports whether this failure tripped the detector.
func (d *outageDetector) recordFailure() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out {
		return false
	}
	d.failures++
	if d.failures >= d.threshold {
		d.out = true
		return true
	}
	return false
}

func (d *outageDetector) tripped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out
}
