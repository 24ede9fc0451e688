package calc

import (
	"fmt"
	"testing"
	"time"

	"kitty/internal/core"
)

func twoPersonConfig(budgetCents int64) core.Config {
	return core.Config{
		Participants: []core.Participant{
			{ID: "p_a", Name: "Alice"},
			{ID: "p_b", Name: "Bob"},
		},
		Categories: []core.Category{
			{ID: "c_all", Name: "Household", BudgetCents: budgetCents},
		},
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func expense(id, date string, cents int64) core.Transaction {
	return core.Transaction{
		ID: id, Date: date, Kind: core.KindExpense,
		CategoryID: "c_all", AmountCents: -cents,
		CreatedAt: time.Now(),
	}
}

func contribution(id, date, participantID string, cents int64) core.Transaction {
	return core.Transaction{
		ID: id, Date: date, Kind: core.KindContribution,
		ParticipantID: participantID, AmountCents: cents,
		CreatedAt: time.Now(),
	}
}

func rowFor(t *testing.T, s Summary, participantID string) Row {
	t.Helper()
	for _, r := range s.Rows {
		if r.ParticipantID == participantID {
			return r
		}
	}
	t.Fatalf("no row for participant %s", participantID)
	return Row{}
}

// Budget 1000, one overspent month: the group spends 1200 and Alice pays in
// 500. The obligation base rises to the actual spend, each owes 600; Alice
// ends 100 short, Bob 600 short, and both deficits carry into February where
// the base falls back to the nominal budget.
func TestComputeSummaryCarryAcrossMonths(t *testing.T) {
	cfg := twoPersonConfig(1000)
	txs := []core.Transaction{
		expense("tx_e1", "2025-01-15", 1200),
		contribution("tx_c1", "2025-01-20", "p_a", 500),
	}

	january := ComputeSummary(cfg, txs, "2025-01")
	if !january.UsedActuals {
		t.Error("January should use actual spend as the base")
	}
	if january.MonthlyBaseCents != 1200 {
		t.Errorf("January base = %d, want 1200", january.MonthlyBaseCents)
	}

	a := rowFor(t, january, "p_a")
	if a.OwedCents != 600 || a.ContributedCents != 500 || a.BalanceCents != -100 || a.CarryoverNextCents != 100 {
		t.Errorf("January Alice = %+v, want owed 600, contributed 500, balance -100, carry 100", a)
	}
	b := rowFor(t, january, "p_b")
	if b.OwedCents != 600 || b.ContributedCents != 0 || b.BalanceCents != -600 || b.CarryoverNextCents != 600 {
		t.Errorf("January Bob = %+v, want owed 600, contributed 0, balance -600, carry 600", b)
	}

	february := ComputeSummary(cfg, txs, "2025-02")
	if february.UsedActuals {
		t.Error("February should fall back to the nominal budget")
	}
	if february.MonthlyBaseCents != 1000 {
		t.Errorf("February base = %d, want 1000", february.MonthlyBaseCents)
	}

	a = rowFor(t, february, "p_a")
	if a.OwedCents != 600 {
		t.Errorf("February Alice owed = %d, want 600", a.OwedCents)
	}
	b = rowFor(t, february, "p_b")
	if b.OwedCents != 1100 {
		t.Errorf("February Bob owed = %d, want 1100", b.OwedCents)
	}
}

// An overpayment becomes a credit: the next month's owed amount shrinks by
// the surplus.
func TestComputeSummaryOverpaymentCredit(t *testing.T) {
	cfg := twoPersonConfig(1000)
	txs := []core.Transaction{
		contribution("tx_c1", "2025-01-05", "p_a", 800),
	}

	february := ComputeSummary(cfg, txs, "2025-02")
	a := rowFor(t, february, "p_a")
	// January: owed 500, contributed 800, carry -300. February: 500 - 300.
	if a.OwedCents != 200 {
		t.Errorf("February Alice owed = %d, want 200", a.OwedCents)
	}
}

// The sum of all carryovers equals total obligations minus total
// contributions across the whole history.
func TestComputeSummaryCarryConservation(t *testing.T) {
	cfg := twoPersonConfig(1000)
	txs := []core.Transaction{
		expense("tx_e1", "2025-01-10", 730),
		expense("tx_e2", "2025-02-14", 1501),
		contribution("tx_c1", "2025-01-12", "p_a", 333),
		contribution("tx_c2", "2025-02-20", "p_b", 901),
	}

	var totalOwed, totalContributed, totalCarry int64
	for m := 1; m <= 3; m++ {
		month := core.MonthKey(fmt.Sprintf("2025-%02d", m))
		s := ComputeSummary(cfg, txs, month)
		totalCarry = 0
		totalOwed += s.MonthlyBaseCents
		for _, r := range s.Rows {
			totalContributed += r.ContributedCents
			totalCarry += r.CarryoverNextCents
		}
	}
	if totalCarry != totalOwed-totalContributed {
		t.Errorf("carry %d != owed %d - contributed %d", totalCarry, totalOwed, totalContributed)
	}
}

func TestComputeSummaryBackdatedTransaction(t *testing.T) {
	cfg := twoPersonConfig(1000)
	// Entry dated before the configuration existed pulls the replay start back.
	txs := []core.Transaction{
		expense("tx_old", "2024-11-03", 2000),
	}

	s := ComputeSummary(cfg, txs, "2024-11")
	a := rowFor(t, s, "p_a")
	if a.OwedCents != 1000 {
		t.Errorf("owed = %d, want 1000 (half of the actual spend)", a.OwedCents)
	}
}

func TestComputeSummaryTargetBeforeHistory(t *testing.T) {
	cfg := twoPersonConfig(1000)
	txs := []core.Transaction{
		expense("tx_e1", "2025-03-01", 500),
	}

	s := ComputeSummary(cfg, txs, "2024-06")
	if len(s.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(s.Rows))
	}
	a := rowFor(t, s, "p_a")
	if a.OwedCents != 500 || a.ContributedCents != 0 {
		t.Errorf("pre-history month Alice = %+v, want owed 500 from the floor budget", a)
	}
}

func TestComputeSummaryNoParticipants(t *testing.T) {
	cfg := core.Config{
		Categories: []core.Category{{ID: "c", Name: "All", BudgetCents: 1000}},
		CreatedAt:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	s := ComputeSummary(cfg, nil, "2025-01")
	if len(s.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(s.Rows))
	}
	if s.TotalBudgetCents != 1000 {
		t.Errorf("total budget = %d, want 1000", s.TotalBudgetCents)
	}
}

func TestComputeSummaryUninitializedConfig(t *testing.T) {
	s := ComputeSummary(core.Config{}, nil, "2025-05")
	if s.MonthlyBaseCents != 0 || len(s.Rows) != 0 {
		t.Errorf("empty config summary = %+v, want all zeros", s)
	}
}
