package calc

import (
	"kitty/internal/core"
)

// Row is one participant's financial position for the requested month.
type Row struct {
	ParticipantID      string `json:"participantId"`
	Name               string `json:"name"`
	OwedCents          int64  `json:"owedCents"`
	ContributedCents   int64  `json:"contributedCents"`
	BalanceCents       int64  `json:"balanceCents"`
	CarryoverNextCents int64  `json:"carryoverNextCents"`
	SplitShareCents    int64  `json:"splitShareCents"`
}

// Summary is the per-participant obligation picture for one month.
type Summary struct {
	TotalBudgetCents int64 `json:"totalBudgetCents"`
	MonthlyBaseCents int64 `json:"monthlyBaseCents"`
	UsedActuals      bool  `json:"usedActuals"`
	Rows             []Row `json:"rows"`
}

// ComputeSummary replays the full transaction history month by month and
// returns each participant's owed amount, contributions, balance, and the
// carryover into the following month, as of targetMonth.
//
// There are no persisted running totals: the fold restarts from the earlier of
// the configuration's creation month and the earliest transaction month on
// every call, which keeps retroactive edits and backdated entries correct with
// nothing to invalidate.
//
// Per month m the obligation floor is the nominal budget, raised to the actual
// spend when the group overspends: base(m) = max(nominalBudget, actualSpend(m)).
// base(m) splits evenly across participants; each participant's owed amount is
// their share plus the carry from the previous month, and -balance carries
// forward.
func ComputeSummary(cfg core.Config, transactions []core.Transaction, targetMonth core.MonthKey) Summary {
	participants := cfg.Participants
	n := len(participants)
	if n == 0 {
		n = 1
	}
	nominalBudget := cfg.TotalBudgetCents()

	startMonth := core.MonthOfTime(cfg.CreatedAt)
	if cfg.CreatedAt.IsZero() {
		startMonth = targetMonth
	}
	byMonth := make(map[core.MonthKey][]core.Transaction)
	for _, tx := range transactions {
		m := core.MonthOf(tx.Date)
		if m < startMonth {
			startMonth = m
		}
		byMonth[m] = append(byMonth[m], tx)
	}
	// A target before any history still gets a snapshot from the floor budget.
	startMonth = core.MinMonth(startMonth, targetMonth)

	carry := make(map[string]int64, len(participants))
	rows := make([]Row, len(participants))

	for _, m := range core.MonthsBetween(startMonth, targetMonth) {
		var actualSpend int64
		contributed := make(map[string]int64)
		for _, tx := range byMonth[m] {
			switch tx.Kind {
			case core.KindExpense:
				actualSpend += abs(tx.AmountCents)
			case core.KindContribution:
				contributed[tx.ParticipantID] += tx.AmountCents
			}
		}

		monthlyBase := nominalBudget
		if actualSpend > monthlyBase {
			monthlyBase = actualSpend
		}
		shares := SplitEven(monthlyBase, n)

		for i, p := range participants {
			owed := shares[i] + carry[p.ID]
			balance := contributed[p.ID] - owed
			carry[p.ID] = -balance

			if m == targetMonth {
				rows[i] = Row{
					ParticipantID:      p.ID,
					Name:               p.Name,
					OwedCents:          owed,
					ContributedCents:   contributed[p.ID],
					BalanceCents:       balance,
					CarryoverNextCents: -balance,
					SplitShareCents:    shares[i],
				}
			}
		}
	}

	var targetActual int64
	for _, tx := range byMonth[targetMonth] {
		if tx.Kind == core.KindExpense {
			targetActual += abs(tx.AmountCents)
		}
	}
	usedActuals := targetActual > nominalBudget
	monthlyBase := nominalBudget
	if usedActuals {
		monthlyBase = targetActual
	}

	return Summary{
		TotalBudgetCents: nominalBudget,
		MonthlyBaseCents: monthlyBase,
		UsedActuals:      usedActuals,
		Rows:             rows,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
