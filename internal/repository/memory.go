package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"restaurant-ordering/internal/domain"
)

// state is the whole dataset. Slices stored inside are never mutated in
// place, so a shallow copy of the maps is a valid rollback point.
type state struct {
	Menu    map[string]domain.MenuItem       `json:"menu"`
	Members map[string]domain.Member         `json:"members"`
	Orders  map[string]domain.Order          `json:"orders"`
	History map[string][]domain.StatusChange `json:"history"`
	Workers map[string]domain.Worker         `json:"workers"`
}

func newState() *state {
	return &state{
		Menu:    make(map[string]domain.MenuItem),
		Members: make(map[string]domain.Member),
		Orders:  make(map[string]domain.Order),
		History: make(map[string][]domain.StatusChange),
		Workers: make(map[string]domain.Worker),
	}
}

func (st *state) clone() *state {
	cp := newState()
	for k, v := range st.Menu {
		cp.Menu[k] = v
	}
	for k, v := range st.Members {
		cp.Members[k] = v
	}
	for k, v := range st.Orders {
		cp.Orders[k] = v
	}
	for k, v := range st.History {
		cp.History[k] = v
	}
	for k, v := range st.Workers {
		cp.Workers[k] = v
	}
	return cp
}

// MemoryStore keeps everything in process. With a snapshot path it becomes
// the flat JSON file adapter: the file is rewritten after every committed write.
type MemoryStore struct {
	mu       sync.Mutex
	st       *state
	snapshot *snapshotFile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// NewJSONStore loads path if it exists and persists every change back to it.
func NewJSONStore(path string) (*MemoryStore, error) {
	snap := &snapshotFile{path: path}
	st, err := snap.load()
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore()
	if st != nil {
		s.st = st
	}
	s.snapshot = snap
	return s, nil
}

func (s *MemoryStore) read(fn func(v *memView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memView{st: s.st, now: s.now})
}

func (s *MemoryStore) write(fn func(v *memView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup := s.st.clone()
	if err := fn(&memView{st: s.st, now: s.now}); err != nil {
		s.st = backup
		return err
	}
	return s.persist(backup)
}

func (s *MemoryStore) persist(backup *state) error {
	if s.snapshot == nil {
		return nil
	}
	if err := s.snapshot.save(s.st); err != nil {
		s.st = backup
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.write(func(v *memView) error { return fn(v) })
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) ListMenu(ctx context.Context, f MenuFilter) (out []domain.MenuItem, err error) {
	err = s.read(func(v *memView) error { out, err = v.ListMenu(ctx, f); return err })
	return out, err
}

func (s *MemoryStore) GetMenuItem(ctx context.Context, id string) (out domain.MenuItem, err error) {
	err = s.read(func(v *memView) error { out, err = v.GetMenuItem(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) GetMenuItems(ctx context.Context, ids []string) (out map[string]domain.MenuItem, err error) {
	err = s.read(func(v *memView) error { out, err = v.GetMenuItems(ctx, ids); return err })
	return out, err
}

func (s *MemoryStore) CreateMenuItem(ctx context.Context, item domain.MenuItem) error {
	return s.write(func(v *memView) error { return v.CreateMenuItem(ctx, item) })
}

func (s *MemoryStore) UpdateMenuItem(ctx context.Context, item domain.MenuItem) error {
	return s.write(func(v *memView) error { return v.UpdateMenuItem(ctx, item) })
}

func (s *MemoryStore) DeleteMenuItem(ctx context.Context, id string) error {
	return s.write(func(v *memView) error { return v.DeleteMenuItem(ctx, id) })
}

func (s *MemoryStore) GetMember(ctx context.Context, phone string) (out domain.Member, err error) {
	err = s.read(func(v *memView) error { out, err = v.GetMember(ctx, phone); return err })
	return out, err
}

func (s *MemoryStore) GetMemberForUpdate(ctx context.Context, phone string) (domain.Member, error) {
	return s.GetMember(ctx, phone)
}

func (s *MemoryStore) ListMembers(ctx context.Context) (out []domain.Member, err error) {
	err = s.read(func(v *memView) error { out, err = v.ListMembers(ctx); return err })
	return out, err
}

func (s *MemoryStore) CreateMember(ctx context.Context, m domain.Member) error {
	return s.write(func(v *memView) error { return v.CreateMember(ctx, m) })
}

func (s *MemoryStore) AddMemberPoints(ctx context.Context, phone string, delta int64) (out domain.Member, err error) {
	err = s.write(func(v *memView) error { out, err = v.AddMemberPoints(ctx, phone, delta); return err })
	return out, err
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o domain.Order, changedBy string) error {
	return s.write(func(v *memView) error { return v.CreateOrder(ctx, o, changedBy) })
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (out domain.Order, err error) {
	err = s.read(func(v *memView) error { out, err = v.GetOrder(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) (out []domain.Order, err error) {
	err = s.read(func(v *memView) error { out, err = v.ListOrders(ctx, f); return err })
	return out, err
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, changedBy string) (old domain.OrderStatus, out domain.Order, err error) {
	err = s.write(func(v *memView) error {
		old, out, err = v.UpdateOrderStatus(ctx, id, status, changedBy)
		return err
	})
	return old, out, err
}

func (s *MemoryStore) StatusHistory(ctx context.Context, id string) (out []domain.StatusChange, err error) {
	err = s.read(func(v *memView) error { out, err = v.StatusHistory(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) RegisterWorker(ctx context.Context, name string) error {
	return s.write(func(v *memView) error { return v.RegisterWorker(ctx, name) })
}

func (s *MemoryStore) WorkerHeartbeat(ctx context.Context, name string, processed int) error {
	return s.write(func(v *memView) error { return v.WorkerHeartbeat(ctx, name, processed) })
}

func (s *MemoryStore) SetWorkerOffline(ctx context.Context, name string) error {
	return s.write(func(v *memView) error { return v.SetWorkerOffline(ctx, name) })
}

func (s *MemoryStore) ListWorkers(ctx context.Context) (out []domain.Worker, err error) {
	err = s.read(func(v *memView) error { out, err = v.ListWorkers(ctx); return err })
	return out, err
}

// memView operates on state without locking; MemoryStore holds the lock around it.
type memView struct {
	st  *state
	now func() time.Time
}

func (v *memView) Atomic(ctx context.Context, fn func(tx Store) error) error { return fn(v) }
func (v *memView) Ping(context.Context) error                                 { return nil }
func (v *memView) Close() error                                               { return nil }

func (v *memView) ListMenu(_ context.Context, f MenuFilter) ([]domain.MenuItem, error) {
	out := make([]domain.MenuItem, 0, len(v.st.Menu))
	for _, it := range v.st.Menu {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.AvailableOnly && !it.Available {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *memView) GetMenuItem(_ context.Context, id string) (domain.MenuItem, error) {
	it, ok := v.st.Menu[id]
	if !ok {
		return domain.MenuItem{}, fmt.Errorf("menu item %s: %w", id, domain.ErrNotFound)
	}
	return it, nil
}

func (v *memView) GetMenuItems(_ context.Context, ids []string) (map[string]domain.MenuItem, error) {
	out := make(map[string]domain.MenuItem, len(ids))
	for _, id := range ids {
		if it, ok := v.st.Menu[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (v *memView) CreateMenuItem(_ context.Context, item domain.MenuItem) error {
	if _, ok := v.st.Menu[item.ID]; ok {
		return fmt.Errorf("menu item %s: %w", item.ID, domain.ErrConflict)
	}
	v.st.Menu[item.ID] = item
	return nil
}

func (v *memView) UpdateMenuItem(_ context.Context, item domain.MenuItem) error {
	if _, ok := v.st.Menu[item.ID]; !ok {
		return fmt.Errorf("menu item %s: %w", item.ID, domain.ErrNotFound)
	}
	v.st.Menu[item.ID] = item
	return nil
}

func (v *memView) DeleteMenuItem(_ context.Context, id string) error {
	if _, ok := v.st.Menu[id]; !ok {
		return fmt.Errorf("menu item %s: %w", id, domain.ErrNotFound)
	}
	delete(v.st.Menu, id)
	return nil
}

func (v *memView) GetMember(_ context.Context, phone string) (domain.Member, error) {
	m, ok := v.st.Members[phone]
	if !ok {
		return domain.Member{}, fmt.Errorf("member %s: %w", phone, domain.ErrNotFound)
	}
	return m, nil
}

// GetMemberForUpdate needs no extra locking: a memView only exists under the store mutex.
func (v *memView) GetMemberForUpdate(ctx context.Context, phone string) (domain.Member, error) {
	return v.GetMember(ctx, phone)
}

func (v *memView) ListMembers(context.Context) ([]domain.Member, error) {
	out := make([]domain.Member, 0, len(v.st.Members))
	for _, m := range v.st.Members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (v *memView) CreateMember(_ context.Context, m domain.Member) error {
	if _, ok := v.st.Members[m.Phone]; ok {
		return fmt.Errorf("member %s: %w", m.Phone, domain.ErrConflict)
	}
	v.st.Members[m.Phone] = m
	return nil
}

func (v *memView) AddMemberPoints(_ context.Context, phone string, delta int64) (domain.Member, error) {
	m, ok := v.st.Members[phone]
	if !ok {
		return domain.Member{}, fmt.Errorf("member %s: %w", phone, domain.ErrNotFound)
	}
	if m.Points+delta < 0 {
		return domain.Member{}, domain.NewValidationError("points", "balance cannot go negative")
	}
	m.Points += delta
	m.UpdatedAt = v.now()
	v.st.Members[phone] = m
	return m, nil
}

func (v *memView) CreateOrder(_ context.Context, o domain.Order, changedBy string) error {
	if _, ok := v.st.Orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrConflict)
	}
	v.st.Orders[o.ID] = o
	v.st.History[o.ID] = []domain.StatusChange{{
		OrderID: o.ID, To: o.Status, ChangedBy: changedBy, ChangedAt: o.CreatedAt,
	}}
	return nil
}

func (v *memView) GetOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := v.st.Orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (v *memView) ListOrders(_ context.Context, f OrderFilter) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	for _, o := range v.st.Orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Order{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (v *memView) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus, changedBy string) (domain.OrderStatus, domain.Order, error) {
	o, ok := v.st.Orders[id]
	if !ok {
		return "", domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	old := o.Status
	now := v.now()
	o.Status = status
	o.UpdatedAt = now
	v.st.Orders[id] = o

	hist := make([]domain.StatusChange, len(v.st.History[id]), len(v.st.History[id])+1)
	copy(hist, v.st.History[id])
	v.st.History[id] = append(hist, domain.StatusChange{
		OrderID: id, From: old, To: status, ChangedBy: changedBy, ChangedAt: now,
	})
	return old, o, nil
}

func (v *memView) StatusHistory(_ context.Context, id string) ([]domain.StatusChange, error) {
	if _, ok := v.st.Orders[id]; !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	out := make([]domain.StatusChange, len(v.st.History[id]))
	copy(out, v.st.History[id])
	return out, nil
}

func (v *memView) RegisterWorker(_ context.Context, name string) error {
	w, ok := v.st.Workers[name]
	if ok && w.Status == "online" {
		return fmt.Errorf("worker %s: %w", name, domain.ErrConflict)
	}
	w.Name = name
	w.Status = "online"
	w.LastSeen = v.now()
	v.st.Workers[name] = w
	return nil
}

func (v *memView) WorkerHeartbeat(_ context.Context, name string, processed int) error {
	w, ok := v.st.Workers[name]
	if !ok {
		return fmt.Errorf("worker %s: %w", name, domain.ErrNotFound)
	}
	w.LastSeen = v.now()
	w.OrdersProcessed += processed
	v.st.Workers[name] = w
	return nil
}

func (v *memView) SetWorkerOffline(_ context.Context, name string) error {
	w, ok := v.st.Workers[name]
	if !ok {
		return fmt.Errorf("worker %s: %w", name, domain.ErrNotFound)
	}
	w.Status = "offline"
	w.LastSeen = v.now()
	v.st.Workers[name] = w
	return nil
}

func (v *memView) ListWorkers(context.Context) ([]domain.Worker, error) {
	out := make([]domain.Worker, 0, len(v.st.Workers))
	for _, w := range v.st.Workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
