package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/nekidev/nekos-api/internal/schema"
)

// MemoryStore keeps records in process memory. It is used by tests and by
// dry-run tooling that never touches a database.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*schema.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]*schema.Record)}
}

func (m *MemoryStore) Tip(_ context.Context, lineage string) (*schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.records[lineage]
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1].Clone(), nil
}

func (m *MemoryStore) Insert(_ context.Context, rec *schema.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[rec.Lineage]

	tip := ""
	if len(recs) > 0 {
		tip = recs[len(recs)-1].Name
	}
	if tip != rec.Predecessor {
		return ErrTipMoved
	}
	for _, r := range recs {
		if r.Name == rec.Name {
			return ErrTipMoved
		}
	}
	m.records[rec.Lineage] = append(recs, rec.Clone())
	return nil
}

func (m *MemoryStore) Page(_ context.Context, lineage string, afterSeq int64, limit int) ([]*schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*schema.Record
	for _, r := range m.records[lineage] {
		if r.Seq <= afterSeq {
			continue
		}
		out = append(out, r.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, lineage, name string) (*schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records[lineage] {
		if r.Name == name {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Lineages(_ context.Context) ([]LineageTip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LineageTip, 0, len(m.records))
	for lineage, recs := range m.records {
		if len(recs) == 0 {
			continue
		}
		tip := recs[len(recs)-1]
		out = append(out, LineageTip{
			Lineage:   lineage,
			TipName:   tip.Name,
			TipSeq:    tip.Seq,
			UpdatedAt: tip.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lineage < out[j].Lineage })
	return out, nil
}
