package calc

import (
	"sort"

	"kitty/internal/core"
)

// UnknownCategoryID buckets expenses whose category id is not configured.
const UnknownCategoryID = "__unknown__"

// CategoryRow is actual spend against budget for one category in one month.
type CategoryRow struct {
	CategoryID    string `json:"categoryId"`
	Name          string `json:"name"`
	BudgetCents   int64  `json:"budgetCents"`
	ActualCents   int64  `json:"actualCents"`
	VarianceCents int64  `json:"varianceCents"`
}

// CategorySummary aggregates a month's spend per category. Positive variance
// means over budget.
type CategorySummary struct {
	Rows               []CategoryRow `json:"rows"`
	TotalBudgetCents   int64         `json:"totalBudgetCents"`
	TotalActualCents   int64         `json:"totalActualCents"`
	TotalVarianceCents int64         `json:"totalVarianceCents"`
}

// ComputeCategorySummary sums the month's expenses per category. Every
// configured category gets a row even with zero spend; expenses referencing an
// unrecognized category land in a synthetic "(Unknown)" row with zero budget
// so the aggregate stays complete. Rows sort by name (ordinal, stable).
func ComputeCategorySummary(categories []core.Category, transactions []core.Transaction, month core.MonthKey) CategorySummary {
	rowsByID := make(map[string]*CategoryRow, len(categories))
	for _, c := range categories {
		rowsByID[c.ID] = &CategoryRow{
			CategoryID:  c.ID,
			Name:        c.Name,
			BudgetCents: c.BudgetCents,
		}
	}

	for _, tx := range transactions {
		if tx.Kind != core.KindExpense || core.MonthOf(tx.Date) != month {
			continue
		}
		id := tx.CategoryID
		row, ok := rowsByID[id]
		if !ok {
			id = UnknownCategoryID
			if row, ok = rowsByID[id]; !ok {
				row = &CategoryRow{CategoryID: id, Name: "(Unknown)"}
				rowsByID[id] = row
			}
		}
		row.ActualCents += abs(tx.AmountCents)
	}

	summary := CategorySummary{Rows: make([]CategoryRow, 0, len(rowsByID))}
	for _, row := range rowsByID {
		row.VarianceCents = row.ActualCents - row.BudgetCents
		summary.Rows = append(summary.Rows, *row)
		summary.TotalBudgetCents += row.BudgetCents
		summary.TotalActualCents += row.ActualCents
	}
	summary.TotalVarianceCents = summary.TotalActualCents - summary.TotalBudgetCents

	sort.SliceStable(summary.Rows, func(i, j int) bool {
		if summary.Rows[i].Name != summary.Rows[j].Name {
			return summary.Rows[i].Name < summary.Rows[j].Name
		}
		return summary.Rows[i].CategoryID < summary.Rows[j].CategoryID
	})
	return summary
}
