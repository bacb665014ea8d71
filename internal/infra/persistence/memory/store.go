// Package memory provides an in-memory implementation of the herd store used
// for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"herdbook/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Cattle aliases domain.Cattle.
	Cattle = domain.Cattle
	// Event aliases domain.Event.
	Event = domain.Event
	// MilkRecord aliases domain.MilkRecord.
	MilkRecord = domain.MilkRecord
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// HealthRecord aliases domain.HealthRecord.
	HealthRecord = domain.HealthRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
)

type memoryState struct {
	cattle       map[int64]Cattle
	events       map[int64]Event
	milk         map[int64]MilkRecord
	transactions map[int64]Transaction
	health       map[int64]HealthRecord
	seq          map[domain.EntityType]int64
}

func newMemoryState() memoryState {
	return memoryState{
		cattle:       make(map[int64]Cattle),
		events:       make(map[int64]Event),
		milk:         make(map[int64]MilkRecord),
		transactions: make(map[int64]Transaction),
		health:       make(map[int64]HealthRecord),
		seq:          make(map[domain.EntityType]int64),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.cattle {
		cloned.cattle[k] = cloneCattle(v)
	}
	for k, v := range s.events {
		cloned.events[k] = cloneEvent(v)
	}
	for k, v := range s.milk {
		cloned.milk[k] = cloneMilk(v)
	}
	for k, v := range s.transactions {
		cloned.transactions[k] = cloneTransaction(v)
	}
	for k, v := range s.health {
		cloned.health[k] = cloneHealth(v)
	}
	for k, v := range s.seq {
		cloned.seq[k] = v
	}
	return cloned
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneCattle(c Cattle) Cattle {
	cp := c
	cp.DateOfBirth = cloneTime(c.DateOfBirth)
	cp.DateOfEntry = cloneTime(c.DateOfEntry)
	cp.InseminationDate = cloneTime(c.InseminationDate)
	cp.LastDeliveryDate = cloneTime(c.LastDeliveryDate)
	return cp
}

func cloneEvent(e Event) Event {
	cp := e
	cp.Cows = e.Cows.Clone()
	return cp
}

func cloneMilk(m MilkRecord) MilkRecord {
	cp := m
	cp.Cows = m.Cows.Clone()
	return cp
}

func cloneTransaction(t Transaction) Transaction {
	cp := t
	if t.CowID != nil {
		id := *t.CowID
		cp.CowID = &id
	}
	return cp
}

func cloneHealth(h HealthRecord) HealthRecord {
	cp := h
	cp.EndDate = cloneTime(h.EndDate)
	return cp
}

func sortedValues[T any](m map[int64]T, clone func(T) T) []T {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(m[id]))
	}
	return out
}

// Store provides an in-memory transactional store for herd records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Close releases nothing; it exists to satisfy domain.PersistentStore.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule
// violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Tx) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		view: view{state: s.state.clone()},
		now:  s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, &tx.view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TxView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := view{state: s.state.clone()}
	return fn(&snapshot)
}

type view struct {
	state memoryState
}

func (v *view) FindCattle(id int64) (Cattle, error) {
	c, ok := v.state.cattle[id]
	if !ok {
		return Cattle{}, domain.NotFoundError{Entity: domain.EntityCattle, ID: id}
	}
	return cloneCattle(c), nil
}

func (v *view) FindCattleByEarTag(earTag string) (Cattle, bool, error) {
	for _, c := range v.state.cattle {
		if strings.EqualFold(c.EarTagNumber, earTag) {
			return cloneCattle(c), true, nil
		}
	}
	return Cattle{}, false, nil
}

func (v *view) ListCattle() ([]Cattle, error) {
	return sortedValues(v.state.cattle, cloneCattle), nil
}

func (v *view) FindEvent(id int64) (Event, error) {
	e, ok := v.state.events[id]
	if !ok {
		return Event{}, domain.NotFoundError{Entity: domain.EntityEvent, ID: id}
	}
	return cloneEvent(e), nil
}

func (v *view) ListEvents() ([]Event, error) {
	return sortedValues(v.state.events, cloneEvent), nil
}

func (v *view) FindMilkRecord(id int64) (MilkRecord, error) {
	m, ok := v.state.milk[id]
	if !ok {
		return MilkRecord{}, domain.NotFoundError{Entity: domain.EntityMilkRecord, ID: id}
	}
	return cloneMilk(m), nil
}

func (v *view) ListMilkRecords() ([]MilkRecord, error) {
	return sortedValues(v.state.milk, cloneMilk), nil
}

func (v *view) FindTransaction(id int64) (Transaction, error) {
	t, ok := v.state.transactions[id]
	if !ok {
		return Transaction{}, domain.NotFoundError{Entity: domain.EntityTransaction, ID: id}
	}
	return cloneTransaction(t), nil
}

func (v *view) ListTransactions() ([]Transaction, error) {
	return sortedValues(v.state.transactions, cloneTransaction), nil
}

func (v *view) FindHealthRecord(id int64) (HealthRecord, error) {
	h, ok := v.state.health[id]
	if !ok {
		return HealthRecord{}, domain.NotFoundError{Entity: domain.EntityHealthRecord, ID: id}
	}
	return cloneHealth(h), nil
}

func (v *view) ListHealthRecords() ([]HealthRecord, error) {
	return sortedValues(v.state.health, cloneHealth), nil
}
