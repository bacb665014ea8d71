package domain

import "context"

// TxView provides read-only access to records inside a unit of work. Lookups
// of unknown ids return NotFoundError; engine failures return StorageError.
type TxView interface {
	FindCattle(id int64) (Cattle, error)
	FindCattleByEarTag(earTag string) (Cattle, bool, error)
	ListCattle() ([]Cattle, error)
	FindEvent(id int64) (Event, error)
	ListEvents() ([]Event, error)
	FindMilkRecord(id int64) (MilkRecord, error)
	ListMilkRecords() ([]MilkRecord, error)
	FindTransaction(id int64) (Transaction, error)
	ListTransactions() ([]Transaction, error)
	FindHealthRecord(id int64) (HealthRecord, error)
	ListHealthRecords() ([]HealthRecord, error)
}

// Tx exposes the mutations a persistence implementation must support within
// an atomic scope. Create honours a preset ID so snapshots can be restored.
type Tx interface {
	TxView
	CreateCattle(Cattle) (Cattle, error)
	UpdateCattle(id int64, mutator func(*Cattle) error) (Cattle, error)
	CreateEvent(Event) (Event, error)
	UpdateEvent(id int64, mutator func(*Event) error) (Event, error)
	DeleteEvent(id int64) error
	CreateMilkRecord(MilkRecord) (MilkRecord, error)
	UpdateMilkRecord(id int64, mutator func(*MilkRecord) error) (MilkRecord, error)
	DeleteMilkRecord(id int64) error
	CreateTransaction(Transaction) (Transaction, error)
	UpdateTransaction(id int64, mutator func(*Transaction) error) (Transaction, error)
	DeleteTransaction(id int64) error
	CreateHealthRecord(HealthRecord) (HealthRecord, error)
	UpdateHealthRecord(id int64, mutator func(*HealthRecord) error) (HealthRecord, error)
	DeleteHealthRecord(id int64) error
}

// PersistentStore is the storage context injected into the service. Every
// RunInTransaction call either commits all of fn's writes or none of them.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Tx) error) (Result, error)
	View(ctx context.Context, fn func(TxView) error) error
	Close() error
}
