package calc

import (
	"testing"

	"kitty/internal/core"
)

func TestComputeCategorySummary(t *testing.T) {
	categories := []core.Category{
		{ID: "c_food", Name: "Food", BudgetCents: 40000},
		{ID: "c_rent", Name: "Rent", BudgetCents: 60000},
	}
	txs := []core.Transaction{
		expense("tx_1", "2025-03-02", 15000),
		expense("tx_2", "2025-03-18", 10000),
		expense("tx_3", "2025-04-01", 9999), // other month, ignored
		contribution("tx_4", "2025-03-05", "p_a", 50000),
	}
	txs[0].CategoryID = "c_food"
	txs[1].CategoryID = "c_food"
	txs[2].CategoryID = "c_food"

	s := ComputeCategorySummary(categories, txs, "2025-03")

	if len(s.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(s.Rows))
	}
	food := s.Rows[0]
	if food.Name != "Food" || food.ActualCents != 25000 || food.VarianceCents != -15000 {
		t.Errorf("food row = %+v, want actual 25000, variance -15000", food)
	}
	rent := s.Rows[1]
	if rent.Name != "Rent" || rent.ActualCents != 0 || rent.VarianceCents != -60000 {
		t.Errorf("rent row = %+v, want actual 0, variance -60000", rent)
	}
	if s.TotalBudgetCents != 100000 || s.TotalActualCents != 25000 || s.TotalVarianceCents != -75000 {
		t.Errorf("totals = %+v, want budget 100000, actual 25000, variance -75000", s)
	}
}

func TestComputeCategorySummaryUnknownBucket(t *testing.T) {
	categories := []core.Category{
		{ID: "c_food", Name: "Food", BudgetCents: 40000},
	}
	tx := expense("tx_1", "2025-03-02", 5000)
	tx.CategoryID = "c_deleted"

	s := ComputeCategorySummary(categories, []core.Transaction{tx}, "2025-03")

	var unknown *CategoryRow
	for i := range s.Rows {
		if s.Rows[i].CategoryID == UnknownCategoryID {
			unknown = &s.Rows[i]
		}
	}
	if unknown == nil {
		t.Fatal("expected a synthetic unknown row")
	}
	if unknown.Name != "(Unknown)" || unknown.BudgetCents != 0 || unknown.ActualCents != 5000 {
		t.Errorf("unknown row = %+v, want name (Unknown), budget 0, actual 5000", *unknown)
	}
	// Zero budget means any spend is over budget.
	if unknown.VarianceCents != 5000 {
		t.Errorf("unknown variance = %d, want 5000", unknown.VarianceCents)
	}
}

func TestComputeCategorySummarySorting(t *testing.T) {
	categories := []core.Category{
		{ID: "c_2", Name: "Zebra", BudgetCents: 100},
		{ID: "c_1", Name: "Apple", BudgetCents: 100},
		{ID: "c_3", Name: "Apple", BudgetCents: 100},
	}

	s := ComputeCategorySummary(categories, nil, "2025-03")
	if len(s.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(s.Rows))
	}
	if s.Rows[0].CategoryID != "c_1" || s.Rows[1].CategoryID != "c_3" || s.Rows[2].CategoryID != "c_2" {
		t.Errorf("row order = %s, %s, %s, want c_1, c_3, c_2",
			s.Rows[0].CategoryID, s.Rows[1].CategoryID, s.Rows[2].CategoryID)
	}
}
