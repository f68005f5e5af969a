package txlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for tests and one-shot
// offline runs.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]EmployeeProfile
	records  map[string][]TransactionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]EmployeeProfile),
		records:  make(map[string][]TransactionRecord),
	}
}

func (s *MemoryStore) PutProfiles(ctx context.Context, profiles []EmployeeProfile) error {
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", p.EmployeeID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.profiles[p.EmployeeID] = p
	}
	return nil
}

// AppendTransactions appends records. A record for an (employee, date) pair
// that already exists is rejected and nothing from the batch is written.
func (s *MemoryStore) AppendTransactions(ctx context.Context, records []TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]map[time.Time]bool)
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("transaction %s/%s: %w", r.EmployeeID, r.Date.Format(time.DateOnly), err)
		}
		day := Truncate(r.Date)
		if seen[r.EmployeeID] == nil {
			seen[r.EmployeeID] = make(map[time.Time]bool)
			for _, existing := range s.records[r.EmployeeID] {
				seen[r.EmployeeID][existing.Date] = true
			}
		}
		if seen[r.EmployeeID][day] {
			return fmt.Errorf("transaction %s/%s already recorded", r.EmployeeID, day.Format(time.DateOnly))
		}
		seen[r.EmployeeID][day] = true
	}

	for _, r := range records {
		r.Date = Truncate(r.Date)
		s.records[r.EmployeeID] = append(s.records[r.EmployeeID], r)
	}
	return nil
}

func (s *MemoryStore) Profile(ctx context.Context, employeeID string) (*EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[employeeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProfiles(ctx context.Context) ([]EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EmployeeProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (s *MemoryStore) History(ctx context.Context, employeeID string) (History, error) {
	s.mu.RLock()
	_, known := s.profiles[employeeID]
	recs := make([]TransactionRecord, len(s.records[employeeID]))
	copy(recs, s.records[employeeID])
	s.mu.RUnlock()

	if !known && len(recs) == 0 {
		return History{}, ErrNotFound
	}
	return NewHistory(employeeID, recs)
}
