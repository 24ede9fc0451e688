// Package store owns the household's durable state: the append-only
// transaction collection and the configuration singleton. Reads and writes go
// through a fast in-memory state guarded by one mutex; every mutation is
// mirrored asynchronously into a slower durable store that exists only to
// repair the in-memory state after a cold start.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"kitty/internal/core"
)

// Meta keys persisted alongside the ledger.
const (
	MetaWatermark     = "sync_watermark"
	MetaLastBackupDay = "backup_last_day"
	MetaLastMonth     = "last_month"
)

// Mirror is the durable backing for the in-memory state.
type Mirror interface {
	LoadConfig(ctx context.Context) (core.Config, bool, error)
	LoadTransactions(ctx context.Context) ([]core.Transaction, error)
	LoadMeta(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, cfg core.Config, transactions []core.Transaction) error
	SaveMeta(ctx context.Context, key, value string) error
	Close() error
}

// Store is the single serialization point for ledger and configuration state.
type Store struct {
	mu       sync.Mutex
	cfg      core.Config
	txs      map[string]core.Transaction
	meta     map[string]string
	revision int64

	mirror Mirror
	wake   chan struct{}
}

// New creates an empty in-memory store. mirror may be nil (tests).
func New(mirror Mirror) *Store {
	return &Store{
		txs:    make(map[string]core.Transaction),
		meta:   make(map[string]string),
		mirror: mirror,
		wake:   make(chan struct{}, 1),
	}
}

// Open creates a store and repairs it from the mirror, which is the startup
// path: the fast state is always empty at boot and the durable store is the
// only copy that survives.
func Open(ctx context.Context, mirror Mirror) (*Store, error) {
	s := New(mirror)
	if mirror == nil {
		return s, nil
	}

	cfg, ok, err := mirror.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if ok {
		s.cfg = cfg
	}

	txs, err := mirror.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}

	for _, key := range []string{MetaWatermark, MetaLastBackupDay, MetaLastMonth} {
		v, err := mirror.LoadMeta(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load meta %q: %w", key, err)
		}
		if v != "" {
			s.meta[key] = v
		}
	}

	slog.InfoContext(ctx, "Store repaired from mirror",
		"transactions", len(s.txs),
		"participants", len(s.cfg.Participants),
		"categories", len(s.cfg.Categories))
	return s, nil
}

// Run flushes dirty state into the mirror until ctx is canceled, then writes a
// final snapshot. Mirror writes never block callers: mutations only poke the
// wake channel.
func (s *Store) Run(ctx context.Context) error {
	if s.mirror == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.flush(flushCtx)
			return nil
		case <-s.wake:
			s.flush(ctx)
		}
	}
}

func (s *Store) flush(ctx context.Context) {
	s.mu.Lock()
	cfg := s.cfg.Clone()
	txs := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		txs = append(txs, tx)
	}
	s.mu.Unlock()

	if err := s.mirror.Save(ctx, cfg, txs); err != nil {
		slog.WarnContext(ctx, "Mirror write failed", "error", err)
	}
}

// notifyMirror marks the state dirty; must be called with the lock held or
// immediately after releasing it.
func (s *Store) notifyMirror() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Revision increments on every mutation; consumers use it to invalidate
// derived caches.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// ---- transactions ----

// Get returns the transaction with the given id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	return tx, ok
}

// Upsert inserts or replaces a locally authored transaction by id. Local
// writes always win over later inbound merges because merge skips known ids.
func (s *Store) Upsert(tx core.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if prev, ok := s.txs[tx.ID]; ok {
		tx.CreatedAt = prev.CreatedAt
		now := time.Now().UTC()
		tx.UpdatedAt = &now
	}
	s.txs[tx.ID] = tx
	s.revision++
	s.mu.Unlock()

	s.notifyMirror()
	return nil
}

// Delete removes a transaction locally. No tombstone is kept or propagated:
// a later inbound merge that still carries the old id will resurrect it.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.txs[id]
	if ok {
		delete(s.txs, id)
		s.revision++
	}
	s.mu.Unlock()

	if ok {
		s.notifyMirror()
	}
	return ok
}

// MergeInbound folds remote transactions into the local set, inserting only
// ids not already present. Existing local entries are never overwritten on
// this path, which makes the merge idempotent and commutative: any overlap of
// batches, in any order, converges to the same set.
func (s *Store) MergeInbound(incoming []core.Transaction) bool {
	s.mu.Lock()
	changed := false
	for _, tx := range incoming {
		if tx.ID == "" {
			continue
		}
		if _, exists := s.txs[tx.ID]; exists {
			continue
		}
		s.txs[tx.ID] = tx
		changed = true
	}
	if changed {
		s.revision++
	}
	s.mu.Unlock()

	if changed {
		s.notifyMirror()
	}
	return changed
}

// List returns a copy of all transactions ordered by date, creation time, id.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListMonth returns the month's transactions in date order.
func (s *Store) ListMonth(month core.MonthKey) []core.Transaction {
	all := s.List()
	out := all[:0:0]
	for _, tx := range all {
		if core.MonthOf(tx.Date) == month {
			out = append(out, tx)
		}
	}
	return out
}

// ---- configuration ----

// Config returns a copy of the configuration singleton.
func (s *Store) Config() core.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// ReplaceConfig swaps the configuration wholesale. The remote snapshot is
// authoritative for configuration, so no invariants are re-checked here.
func (s *Store) ReplaceConfig(cfg core.Config) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.revision++
	s.mu.Unlock()
	s.notifyMirror()
}

// AddParticipant appends a participant after checking the case-insensitive
// name uniqueness invariant.
func (s *Store) AddParticipant(name string) (core.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Participant{}, core.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HasParticipantName(name, "") {
		return core.Participant{}, core.ErrDuplicateName
	}
	p := core.Participant{ID: core.NewParticipantID(), Name: name}
	s.cfg.Participants = append(s.cfg.Participants, p)
	s.touchConfigLocked()
	return p, nil
}

// RenameParticipant changes a participant's display name.
func (s *Store) RenameParticipant(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HasParticipantName(name, id) {
		return core.ErrDuplicateName
	}
	for i := range s.cfg.Participants {
		if s.cfg.Participants[i].ID == id {
			s.cfg.Participants[i].Name = name
			s.touchConfigLocked()
			return nil
		}
	}
	return core.ErrNotFound
}

// RemoveParticipant deletes a participant; the last one cannot be removed.
func (s *Store) RemoveParticipant(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cfg.Participants) <= 1 {
		return core.ErrLastParticipant
	}
	for i := range s.cfg.Participants {
		if s.cfg.Participants[i].ID == id {
			s.cfg.Participants = append(s.cfg.Participants[:i], s.cfg.Participants[i+1:]...)
			s.touchConfigLocked()
			return nil
		}
	}
	return core.ErrNotFound
}

// AddCategory appends a category with its monthly budget in cents.
func (s *Store) AddCategory(name string, budgetCents int64) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if budgetCents < 0 {
		return core.Category{}, core.ErrNegativeBudget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HasCategoryName(name, "") {
		return core.Category{}, core.ErrDuplicateName
	}
	c := core.Category{ID: core.NewCategoryID(), Name: name, BudgetCents: budgetCents}
	s.cfg.Categories = append(s.cfg.Categories, c)
	s.touchConfigLocked()
	return c, nil
}

// UpdateCategory changes a category's name and budget.
func (s *Store) UpdateCategory(id, name string, budgetCents int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	if budgetCents < 0 {
		return core.ErrNegativeBudget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.HasCategoryName(name, id) {
		return core.ErrDuplicateName
	}
	for i := range s.cfg.Categories {
		if s.cfg.Categories[i].ID == id {
			s.cfg.Categories[i].Name = name
			s.cfg.Categories[i].BudgetCents = budgetCents
			s.touchConfigLocked()
			return nil
		}
	}
	return core.ErrNotFound
}

// RemoveCategory deletes a category; the last one cannot be removed.
func (s *Store) RemoveCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cfg.Categories) <= 1 {
		return core.ErrLastCategory
	}
	for i := range s.cfg.Categories {
		if s.cfg.Categories[i].ID == id {
			s.cfg.Categories = append(s.cfg.Categories[:i], s.cfg.Categories[i+1:]...)
			s.touchConfigLocked()
			return nil
		}
	}
	return core.ErrNotFound
}

// touchConfigLocked finalizes a config mutation: stamps CreatedAt on first
// use, bumps the revision and wakes the mirror writer. Caller holds the lock.
func (s *Store) touchConfigLocked() {
	if s.cfg.CreatedAt.IsZero() {
		s.cfg.CreatedAt = time.Now().UTC()
	}
	s.revision++
	s.notifyMirror()
}

// ---- meta ----

// Meta reads a small persisted key (sync watermark, backup day, last month).
func (s *Store) Meta(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[key]
}

// SetMeta writes a meta key. Meta values are tiny and drive sync correctness
// (the watermark must not outlive a crash unrecorded), so they persist
// synchronously rather than through the async snapshot path.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.meta[key] = value
	s.mu.Unlock()

	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.SaveMeta(ctx, key, value); err != nil {
		return fmt.Errorf("save meta %q: %w", key, err)
	}
	return nil
}
