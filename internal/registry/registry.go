package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nekidev/nekos-api/internal/metrics"
	"github.com/nekidev/nekos-api/internal/schema"
)

// DefaultPageSize is the number of records fetched per store round-trip while
// resolving a lineage.
const DefaultPageSize = 100

const maxRecordNameLen = 255

// AppendRequest is a proposed schema-change record.
type AppendRequest struct {
	Lineage     string             `json:"lineage"`
	Name        string             `json:"name,omitempty"`
	Predecessor string             `json:"predecessor"`
	Operations  []schema.Operation `json:"operations"`
}

// Registry admits schema-change records into a Store and replays them.
type Registry struct {
	store    Store
	pageSize int
	locks    sync.Map // lineage -> *sync.Mutex
	now      func() time.Time
}

// New creates a Registry over store. A pageSize of zero or less uses
// DefaultPageSize.
func New(store Store, pageSize int) *Registry {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Registry{
		store:    store,
		pageSize: pageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) lock(lineage string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(lineage, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append validates req against the lineage's current schema and persists it
// as the new tip. It returns *schema.OrderingError when req.Predecessor is not
// the current tip and *schema.ValidationError when the operations or name are
// rejected. Nothing is written when an error is returned.
func (r *Registry) Append(ctx context.Context, req AppendRequest) (*schema.Record, error) {
	// No lineage can exist under an invalid name, so reject it before a lock
	// is allocated for it.
	if err := schema.ValidateLineageName(req.Lineage); err != nil {
		metrics.AppendRejected.WithLabelValues("validation").Inc()
		log.Warn().Err(err).Str("lineage", req.Lineage).Str("reason", "validation").Msg("schema record rejected")
		return nil, err
	}

	mu := r.lock(req.Lineage)
	mu.Lock()
	defer mu.Unlock()

	rec, err := r.append(ctx, req)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, schema.ErrOrdering):
			reason = "ordering"
		case errors.Is(err, schema.ErrValidation):
			reason = "validation"
		}
		metrics.AppendRejected.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("lineage", req.Lineage).Str("reason", reason).Msg("schema record rejected")
		return nil, err
	}

	metrics.RecordsAppended.WithLabelValues(rec.Lineage).Inc()
	log.Info().
		Str("lineage", rec.Lineage).
		Str("record", rec.Name).
		Int64("seq", rec.Seq).
		Int("operations", len(rec.Operations)).
		Msg("schema record appended")
	return rec, nil
}

func (r *Registry) append(ctx context.Context, req AppendRequest) (*schema.Record, error) {
	tip, err := r.store.Tip(ctx, req.Lineage)
	if err != nil {
		return nil, fmt.Errorf("read tip of %s: %w", req.Lineage, err)
	}
	tipName, seq := "", int64(1)
	if tip != nil {
		tipName, seq = tip.Name, tip.Seq+1
	}
	if req.Predecessor != tipName {
		return nil, &schema.OrderingError{Lineage: req.Lineage, Expected: tipName, Got: req.Predecessor}
	}

	current, err := r.CurrentSchema(ctx, req.Lineage)
	if err != nil {
		return nil, err
	}
	if _, err := schema.CheckRecord(req.Lineage, current, tip != nil, req.Operations); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = schema.SuggestName(seq, req.Operations)
	}
	if len(name) > maxRecordNameLen || strings.ContainsAny(name, " \t\r\n/") {
		return nil, &schema.ValidationError{Lineage: req.Lineage, Reason: fmt.Sprintf("record name %q must be at most %d characters without whitespace or slashes", name, maxRecordNameLen)}
	}
	if _, err := r.store.Get(ctx, req.Lineage, name); err == nil {
		return nil, &schema.ValidationError{Lineage: req.Lineage, Reason: fmt.Sprintf("record name %q is already used in this lineage", name)}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ops := schema.CloneOperations(req.Operations)
	rec := &schema.Record{
		ID:          uuid.New(),
		Lineage:     req.Lineage,
		Name:        name,
		Seq:         seq,
		Predecessor: req.Predecessor,
		Operations:  ops,
		Checksum:    schema.Checksum(req.Lineage, name, req.Predecessor, ops),
		CreatedAt:   r.now(),
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrTipMoved) {
			// Another process appended between our tip read and the insert.
			expected := tipName
			moved, err := r.store.Tip(ctx, req.Lineage)
			switch {
			case err != nil:
				log.Warn().Err(err).Str("lineage", req.Lineage).Msg("re-read of moved tip failed; reporting the tip seen before insert")
			case moved != nil:
				expected = moved.Name
			}
			return nil, &schema.OrderingError{Lineage: req.Lineage, Expected: expected, Got: req.Predecessor}
		}
		return nil, fmt.Errorf("insert record %s/%s: %w", req.Lineage, name, err)
	}
	return rec, nil
}

// Resolve yields the records of lineage in admission order, fetching them a
// page at a time. Each record is checked to link to the one before it and to
// match its checksum; on the first failure an error wrapping ErrBrokenChain
// is yielded and iteration stops. The sequence may be ranged over repeatedly.
func (r *Registry) Resolve(ctx context.Context, lineage string) iter.Seq2[*schema.Record, error] {
	return func(yield func(*schema.Record, error) bool) {
		var after int64
		prev := ""
		for {
			page, err := r.store.Page(ctx, lineage, after, r.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("load %s records after %d: %w", lineage, after, err))
				return
			}
			for _, rec := range page {
				if rec.Seq != after+1 || rec.Predecessor != prev {
					yield(nil, fmt.Errorf("%w: %s record %q (seq %d) does not follow %q (seq %d)",
						ErrBrokenChain, lineage, rec.Name, rec.Seq, prev, after))
					return
				}
				if err := rec.VerifyChecksum(); err != nil {
					yield(nil, fmt.Errorf("%w: %v", ErrBrokenChain, err))
					return
				}
				if !yield(rec, nil) {
					return
				}
				after, prev = rec.Seq, rec.Name
			}
			if len(page) < r.pageSize {
				return
			}
		}
	}
}

// Records collects Resolve into a slice.
func (r *Registry) Records(ctx context.Context, lineage string) ([]*schema.Record, error) {
	var out []*schema.Record
	for rec, err := range r.Resolve(ctx, lineage) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CurrentSchema folds every record of lineage into its cumulative schema. An
// unknown lineage has the empty schema.
func (r *Registry) CurrentSchema(ctx context.Context, lineage string) (schema.Schema, error) {
	var s schema.Schema
	for rec, err := range r.Resolve(ctx, lineage) {
		if err != nil {
			return schema.Schema{}, err
		}
		next, err := s.ApplyRecord(rec)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("%w: fold %s/%s: %v", ErrBrokenChain, lineage, rec.Name, err)
		}
		s = next
	}
	return s, nil
}

// Verify replays lineage end to end and checks that the chain ends at the
// stored tip.
func (r *Registry) Verify(ctx context.Context, lineage string) error {
	var (
		s    schema.Schema
		last *schema.Record
	)
	for rec, err := range r.Resolve(ctx, lineage) {
		if err != nil {
			return err
		}
		next, err := s.ApplyRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: fold %s/%s: %v", ErrBrokenChain, lineage, rec.Name, err)
		}
		s, last = next, rec
	}

	tip, err := r.store.Tip(ctx, lineage)
	if err != nil {
		return err
	}
	switch {
	case tip == nil && last == nil:
		return nil
	case tip == nil || last == nil || tip.Name != last.Name:
		return fmt.Errorf("%w: %s chain does not end at the stored tip", ErrBrokenChain, lineage)
	}
	return nil
}

// Get returns a single record by name.
func (r *Registry) Get(ctx context.Context, lineage, name string) (*schema.Record, error) {
	return r.store.Get(ctx, lineage, name)
}

// Tip returns the newest record of lineage, or nil when it has none.
func (r *Registry) Tip(ctx context.Context, lineage string) (*schema.Record, error) {
	return r.store.Tip(ctx, lineage)
}

// Lineages lists known lineages.
func (r *Registry) Lineages(ctx context.Context) ([]LineageTip, error) {
	return r.store.Lineages(ctx)
}

// Page returns one page of stored records for cursor-paginated listings.
func (r *Registry) Page(ctx context.Context, lineage string, afterSeq int64, limit int) ([]*schema.Record, error) {
	return r.store.Page(ctx, lineage, afterSeq, limit)
}
