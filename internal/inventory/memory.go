package inventory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sells-group/solar-router/internal/model"
)

// MemoryStore keeps inventory in process. Each platform has its own slot so
// reservations on different platforms never contend.
type MemoryStore struct {
	slots sync.Map // platform code -> *slot
}

type slot struct {
	def       atomic.Pointer[model.PlatformState] // pricing and eligibility
	capacity  atomic.Int64
	accepting atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(states ...model.PlatformState) *MemoryStore {
	m := &MemoryStore{}
	for _, s := range states {
		m.put(s)
	}
	return m
}

func (m *MemoryStore) put(s model.PlatformState) {
	fresh := newSlot(s)
	v, loaded := m.slots.LoadOrStore(s.PlatformCode, fresh)
	if !loaded {
		return
	}
	sl := v.(*slot)
	sl.def.Store(fresh.def.Load())
	sl.capacity.Store(int64(s.CapacityRemaining))
	sl.accepting.Store(s.AcceptingLeads)
}

func newSlot(s model.PlatformState) *slot {
	def := clonePlatform(s)
	sl := &slot{}
	sl.def.Store(&def)
	sl.capacity.Store(int64(s.CapacityRemaining))
	sl.accepting.Store(s.AcceptingLeads)
	return sl
}

func (m *MemoryStore) slot(code string) (*slot, bool) {
	v, ok := m.slots.Load(code)
	if !ok {
		return nil, false
	}
	return v.(*slot), true
}

// Snapshot implements Store.
func (m *MemoryStore) Snapshot(_ context.Context) ([]model.PlatformState, error) {
	var out []model.PlatformState
	m.slots.Range(func(_, v any) bool {
		out = append(out, v.(*slot).state())
		return true
	})
	sortByCode(out)
	return out, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, code string) (model.PlatformState, error) {
	sl, ok := m.slot(code)
	if !ok {
		return model.PlatformState{}, unknownPlatform(code)
	}
	return sl.state(), nil
}

// Reserve implements Store with a compare-and-swap loop on the slot's
// capacity.
func (m *MemoryStore) Reserve(_ context.Context, code string) (int, error) {
	sl, ok := m.slot(code)
	if !ok {
		return 0, unknownPlatform(code)
	}
	for {
		if !sl.accepting.Load() {
			return 0, capacityExhausted(code)
		}
		cur := sl.capacity.Load()
		if cur <= 0 {
			return 0, capacityExhausted(code)
		}
		if sl.capacity.CompareAndSwap(cur, cur-1) {
			return int(cur - 1), nil
		}
	}
}

// Release implements Store.
func (m *MemoryStore) Release(_ context.Context, code string) (int, error) {
	sl, ok := m.slot(code)
	if !ok {
		return 0, unknownPlatform(code)
	}
	return int(sl.capacity.Add(1)), nil
}

// SetAccepting implements Store.
func (m *MemoryStore) SetAccepting(_ context.Context, code string, accepting bool) error {
	sl, ok := m.slot(code)
	if !ok {
		return unknownPlatform(code)
	}
	sl.accepting.Store(accepting)
	return nil
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(_ context.Context, states ...model.PlatformState) error {
	for _, s := range states {
		if err := Validate(s); err != nil {
			return err
		}
	}
	for _, s := range states {
		m.put(s)
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func (sl *slot) state() model.PlatformState {
	s := clonePlatform(*sl.def.Load())
	s.CapacityRemaining = int(sl.capacity.Load())
	s.AcceptingLeads = sl.accepting.Load()
	return s
}

func clonePlatform(s model.PlatformState) model.PlatformState {
	s.PriceByTier = maps.Clone(s.PriceByTier)
	s.TierEligibility = slices.Clone(s.TierEligibility)
	return s
}
