// Package backup snapshots every herd table into a JSON document on a blob
// store and loads such a document back into an empty store.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"herdbook/internal/blob"
	"herdbook/pkg/domain"
)

// Prefix is the blob key prefix of every backup document.
const Prefix = "backups/"

// FormatVersion is written into every document; Restore rejects other versions.
const FormatVersion = 1

const keyLayout = "20060102T150405.000000000Z"

// ErrStoreNotEmpty is returned by Restore when the target already holds records.
var ErrStoreNotEmpty = errors.New("backup: target store is not empty")

// ErrNoBackups is returned by Latest when the prefix holds no documents.
var ErrNoBackups = errors.New("backup: no backups found")

// Document is the serialized form of a full store snapshot.
type Document struct {
	Version       int                   `json:"version"`
	ExportedAt    time.Time             `json:"exported_at"`
	Cattle        []domain.Cattle       `json:"cattle"`
	Events        []domain.Event        `json:"events"`
	MilkRecords   []domain.MilkRecord   `json:"milk_records"`
	Transactions  []domain.Transaction  `json:"transactions"`
	HealthRecords []domain.HealthRecord `json:"health_records"`
}

// Counts reports how many rows each table contributed.
type Counts struct {
	Cattle        int `json:"cattle"`
	Events        int `json:"events"`
	MilkRecords   int `json:"milk_records"`
	Transactions  int `json:"transactions"`
	HealthRecords int `json:"health_records"`
}

func (d Document) counts() Counts {
	return Counts{
		Cattle:        len(d.Cattle),
		Events:        len(d.Events),
		MilkRecords:   len(d.MilkRecords),
		Transactions:  len(d.Transactions),
		HealthRecords: len(d.HealthRecords),
	}
}

// Key returns the blob key for a backup taken at t.
func Key(t time.Time) string {
	return Prefix + "herdbook-" + t.UTC().Format(keyLayout) + ".json"
}

// Snapshot reads every table in one consistent view.
func Snapshot(ctx context.Context, store domain.PersistentStore, now time.Time) (Document, error) {
	doc := Document{Version: FormatVersion, ExportedAt: now.UTC()}
	err := store.View(ctx, func(v domain.TxView) error {
		var err error
		if doc.Cattle, err = v.ListCattle(); err != nil {
			return err
		}
		if doc.Events, err = v.ListEvents(); err != nil {
			return err
		}
		if doc.MilkRecords, err = v.ListMilkRecords(); err != nil {
			return err
		}
		if doc.Transactions, err = v.ListTransactions(); err != nil {
			return err
		}
		doc.HealthRecords, err = v.ListHealthRecords()
		return err
	})
	if err != nil {
		return Document{}, fmt.Errorf("snapshot: %w", err)
	}
	return doc, nil
}

// Export writes a snapshot of store to blobs under Key(now).
func Export(ctx context.Context, store domain.PersistentStore, blobs blob.Store, now time.Time) (blob.Info, Counts, error) {
	doc, err := Snapshot(ctx, store, now)
	if err != nil {
		return blob.Info{}, Counts{}, err
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, Counts{}, fmt.Errorf("encode backup: %w", err)
	}
	counts := doc.counts()
	info, err := blobs.Put(ctx, Key(now), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"format-version": strconv.Itoa(FormatVersion),
			"cattle":         strconv.Itoa(counts.Cattle),
		},
	})
	if err != nil {
		return blob.Info{}, Counts{}, fmt.Errorf("write backup: %w", err)
	}
	return info, counts, nil
}

// Latest returns the key of the newest backup document.
func Latest(ctx context.Context, blobs blob.Store) (string, error) {
	infos, err := blobs.List(ctx, Prefix)
	if err != nil {
		return "", fmt.Errorf("list backups: %w", err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			keys = append(keys, info.Key)
		}
	}
	if len(keys) == 0 {
		return "", ErrNoBackups
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

// Load fetches and decodes the document stored at key.
func Load(ctx context.Context, blobs blob.Store, key string) (Document, error) {
	_, rc, err := blobs.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("read backup: %w", err)
	}
	defer rc.Close()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup %s: %w", key, err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("backup %s has unsupported version %d", key, doc.Version)
	}
	return doc, nil
}

// Restore loads the document at key into store, keeping every id. The store
// must be empty; all rows are written in a single transaction.
func Restore(ctx context.Context, store domain.PersistentStore, blobs blob.Store, key string) (Counts, error) {
	doc, err := Load(ctx, blobs, key)
	if err != nil {
		return Counts{}, err
	}
	if err := Apply(ctx, store, doc); err != nil {
		return Counts{}, err
	}
	return doc.counts(), nil
}

// Apply writes doc into an empty store. Cattle go first so every reference resolves.
func Apply(ctx context.Context, store domain.PersistentStore, doc Document) error {
	_, err := store.RunInTransaction(ctx, func(tx domain.Tx) error {
		existing, err := tx.ListCattle()
		if err != nil {
			return err
		}
		events, err := tx.ListEvents()
		if err != nil {
			return err
		}
		milk, err := tx.ListMilkRecords()
		if err != nil {
			return err
		}
		txs, err := tx.ListTransactions()
		if err != nil {
			return err
		}
		if len(existing)+len(events)+len(milk)+len(txs) > 0 {
			return ErrStoreNotEmpty
		}
		for _, c := range doc.Cattle {
			if _, err := tx.CreateCattle(c); err != nil {
				return fmt.Errorf("restore cattle %d: %w", c.ID, err)
			}
		}
		for _, e := range doc.Events {
			if _, err := tx.CreateEvent(e); err != nil {
				return fmt.Errorf("restore event %d: %w", e.ID, err)
			}
		}
		for _, m := range doc.MilkRecords {
			if _, err := tx.CreateMilkRecord(m); err != nil {
				return fmt.Errorf("restore milk record %d: %w", m.ID, err)
			}
		}
		for _, t := range doc.Transactions {
			if _, err := tx.CreateTransaction(t); err != nil {
				return fmt.Errorf("restore transaction %d: %w", t.ID, err)
			}
		}
		for _, h := range doc.HealthRecords {
			if _, err := tx.CreateHealthRecord(h); err != nil {
				return fmt.Errorf("restore health record %d: %w", h.ID, err)
			}
		}
		return nil
	})
	return err
}
