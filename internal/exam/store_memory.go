package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryStore keeps everything behind one mutex. Good enough for tests
// and single-process dev runs; the SQL store is the real deployment path.
type memoryStore struct {
	mu       sync.RWMutex
	sets     map[string]QuestionSet // by id
	byKey    map[SetKey]string      // (year, slot) -> id
	attempts map[string]Attempt
}

func NewMemoryStore() Store {
	return &memoryStore{
		sets:     map[string]QuestionSet{},
		byKey:    map[SetKey]string{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutQuestionSet(_ context.Context, qs QuestionSet) (QuestionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := SetKey{Year: qs.Year, Slot: qs.Slot}
	if _, taken := m.byKey[key]; taken {
		return QuestionSet{}, fmt.Errorf("question set %d %q: %w", qs.Year, qs.Slot, ErrConflict)
	}
	m.sets[qs.ID] = qs
	m.byKey[key] = qs.ID
	return qs, nil
}

func (m *memoryStore) GetQuestionSet(_ context.Context, key SetKey) (QuestionSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return QuestionSet{}, fmt.Errorf("question set %d %q: %w", key.Year, key.Slot, ErrNotFound)
	}
	return m.sets[id], nil
}

func (m *memoryStore) GetQuestionSetByID(_ context.Context, id string) (QuestionSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	qs, ok := m.sets[id]
	if !ok {
		return QuestionSet{}, fmt.Errorf("question set %s: %w", id, ErrNotFound)
	}
	return qs, nil
}

func (m *memoryStore) ListQuestionSets(_ context.Context, opts ListOpts) ([]QuestionSetSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []QuestionSetSummary
	for _, qs := range m.sets {
		if opts.Year != 0 && qs.Year != opts.Year {
			continue
		}
		if opts.Slot != "" && qs.Slot != opts.Slot {
			continue
		}
		out = append(out, QuestionSetSummary{
			ID: qs.ID, Year: qs.Year, Slot: qs.Slot,
			QuestionCount: len(qs.Questions), CreatedAt: qs.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Slot < out[j].Slot
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attempts[a.ID]; exists {
		return fmt.Errorf("attempt %s: %w", a.ID, ErrConflict)
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) FindOpenAttempt(_ context.Context, userID, questionSetID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.UserID == userID && a.QuestionSetID == questionSetID && a.Status == StatusOpen {
			return a, nil
		}
	}
	return Attempt{}, fmt.Errorf("open attempt for %s: %w", userID, ErrNotFound)
}

func (m *memoryStore) UpdateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", a.ID, ErrNotFound)
	}
	if cur.Status != StatusOpen {
		return Attempt{}, fmt.Errorf("attempt %s already scored: %w", a.ID, ErrInvalidState)
	}
	if cur.Version != a.Version {
		return Attempt{}, fmt.Errorf("attempt %s version %d stale: %w", a.ID, a.Version, ErrConflict)
	}
	a.Version++
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.QuestionSetID != "" && a.QuestionSetID != opts.QuestionSetID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return page(out, opts.Limit, opts.Offset), nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
