package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kitty/internal/core"
)

func newTestMirror(t *testing.T) *SQLiteMirror {
	t.Helper()
	m, err := NewSQLiteMirror(filepath.Join(t.TempDir(), "kitty.db"))
	if err != nil {
		t.Fatalf("NewSQLiteMirror() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSQLiteMirrorEmpty(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	_, ok, err := m.LoadConfig(ctx)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if ok {
		t.Error("fresh mirror should have no config")
	}

	txs, err := m.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
}

func TestSQLiteMirrorSaveAndLoad(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	cfg := core.Config{
		Participants: []core.Participant{{ID: "p_a", Name: "Alice"}},
		Categories:   []core.Category{{ID: "c_1", Name: "Food", BudgetCents: 40000}},
		CreatedAt:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	updated := time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{
			ID: "tx_1", Date: "2025-03-10", Kind: core.KindExpense,
			CategoryID: "c_1", AmountCents: -2500, Notes: "groceries",
			CreatedAt: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
			UpdatedAt: &updated,
		},
		{
			ID: "tx_2", Date: "2025-03-11", Kind: core.KindContribution,
			ParticipantID: "p_a", AmountCents: 5000,
			CreatedAt: time.Date(2025, time.March, 11, 12, 0, 0, 0, time.UTC),
		},
	}

	if err := m.Save(ctx, cfg, txs); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	gotCfg, ok, err := m.LoadConfig(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadConfig() = %v, %v", ok, err)
	}
	if len(gotCfg.Participants) != 1 || gotCfg.Participants[0].Name != "Alice" {
		t.Errorf("config participants = %+v", gotCfg.Participants)
	}

	gotTxs, err := m.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	if len(gotTxs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(gotTxs))
	}

	byID := make(map[string]core.Transaction, len(gotTxs))
	for _, tx := range gotTxs {
		byID[tx.ID] = tx
	}
	e := byID["tx_1"]
	if e.Kind != core.KindExpense || e.CategoryID != "c_1" || e.ParticipantID != "" || e.AmountCents != -2500 || e.Notes != "groceries" {
		t.Errorf("expense round trip = %+v", e)
	}
	if e.UpdatedAt == nil || !e.UpdatedAt.Equal(updated) {
		t.Errorf("expense UpdatedAt = %v, want %v", e.UpdatedAt, updated)
	}
	c := byID["tx_2"]
	if c.Kind != core.KindContribution || c.ParticipantID != "p_a" || c.CategoryID != "" || c.UpdatedAt != nil {
		t.Errorf("contribution round trip = %+v", c)
	}
}

func TestSQLiteMirrorSaveReplaces(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()
	cfg := core.Config{CreatedAt: time.Now().UTC()}

	first := []core.Transaction{testExpense("tx_old", "2025-01-01", 100)}
	if err := m.Save(ctx, cfg, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second := []core.Transaction{testExpense("tx_new", "2025-02-01", 200)}
	if err := m.Save(ctx, cfg, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := m.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx_new" {
		t.Errorf("transactions = %+v, want only tx_new", got)
	}
}

func TestSQLiteMirrorMeta(t *testing.T) {
	m := newTestMirror(t)
	ctx := context.Background()

	v, err := m.LoadMeta(ctx, MetaWatermark)
	if err != nil {
		t.Fatalf("LoadMeta() error = %v", err)
	}
	if v != "" {
		t.Errorf("LoadMeta() = %q, want empty", v)
	}

	if err := m.SaveMeta(ctx, MetaWatermark, "2025-03-10T00:00:00Z"); err != nil {
		t.Fatalf("SaveMeta() error = %v", err)
	}
	if err := m.SaveMeta(ctx, MetaWatermark, "2025-03-11T00:00:00Z"); err != nil {
		t.Fatalf("SaveMeta() upsert error = %v", err)
	}
	v, err = m.LoadMeta(ctx, MetaWatermark)
	if err != nil {
		t.Fatalf("LoadMeta() error = %v", err)
	}
	if v != "2025-03-11T00:00:00Z" {
		t.Errorf("LoadMeta() = %q, want the last written value", v)
	}
}

func TestOpenRepairsFromMirror(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kitty.db")
	ctx := context.Background()

	m, err := NewSQLiteMirror(path)
	if err != nil {
		t.Fatalf("NewSQLiteMirror() error = %v", err)
	}
	cfg := core.Config{
		Participants: []core.Participant{{ID: "p_a", Name: "Alice"}},
		Categories:   []core.Category{{ID: "c_1", Name: "Food", BudgetCents: 100}},
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.Save(ctx, cfg, []core.Transaction{testExpense("tx_1", "2025-03-10", 2500)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := m.SaveMeta(ctx, MetaWatermark, "wm"); err != nil {
		t.Fatalf("SaveMeta() error = %v", err)
	}
	m.Close()

	// Cold start against the same file.
	m2, err := NewSQLiteMirror(path)
	if err != nil {
		t.Fatalf("NewSQLiteMirror() reopen error = %v", err)
	}
	defer m2.Close()

	s, err := Open(ctx, m2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(s.List()) != 1 {
		t.Errorf("transactions after repair = %d, want 1", len(s.List()))
	}
	if len(s.Config().Participants) != 1 {
		t.Errorf("participants after repair = %d, want 1", len(s.Config().Participants))
	}
	if s.Meta(MetaWatermark) != "wm" {
		t.Errorf("watermark after repair = %q, want wm", s.Meta(MetaWatermark))
	}
}
