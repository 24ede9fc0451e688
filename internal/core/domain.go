package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindExpense      TransactionKind = "expense"
	KindContribution TransactionKind = "contribution"
)

type (
	TransactionKind string

	// Participant is a person who owes into and contributes to the shared pool.
	Participant struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Category is a budget bucket that expenses are charged against.
	// BudgetCents is the nominal monthly allocation in minor currency units.
	Category struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		BudgetCents int64  `json:"budgetCents"`
	}

	// Transaction is a signed monetary event in the ledger. Contributions carry
	// a positive amount and a participant; expenses carry a negative amount and
	// a category. Dates are calendar days in ISO form (YYYY-MM-DD).
	Transaction struct {
		ID            string          `json:"id"`
		Date          string          `json:"date"`
		Kind          TransactionKind `json:"kind"`
		ParticipantID string          `json:"participantId,omitempty"`
		CategoryID    string          `json:"categoryId,omitempty"`
		AmountCents   int64           `json:"amountCents"`
		Notes         string          `json:"notes,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	}

	// Config is the singleton household configuration. A trusted remote
	// snapshot may replace it wholesale.
	Config struct {
		Participants []Participant `json:"participants"`
		Categories   []Category    `json:"categories"`
		CreatedAt    time.Time     `json:"createdAt"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownKind        = errors.New("unknown transaction kind")
	ErrMissingParticipant = errors.New("contribution requires a participant")
	ErrMissingCategory    = errors.New("expense requires a category")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrDuplicateName      = errors.New("name already exists")
	ErrNegativeBudget     = errors.New("budget cannot be negative")
	ErrLastParticipant    = errors.New("at least one participant is required")
	ErrLastCategory       = errors.New("at least one category is required")
	ErrNotFound           = errors.New("not found")
)

// ParseDate validates an ISO calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("transaction id cannot be empty")
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	switch t.Kind {
	case KindContribution:
		if t.ParticipantID == "" {
			return ErrMissingParticipant
		}
		if t.CategoryID != "" {
			return errors.New("contribution cannot reference a category")
		}
		if t.AmountCents <= 0 {
			return ErrInvalidAmount
		}
	case KindExpense:
		if t.CategoryID == "" {
			return ErrMissingCategory
		}
		if t.ParticipantID != "" {
			return errors.New("expense cannot reference a participant")
		}
		if t.AmountCents >= 0 {
			return ErrInvalidAmount
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// TotalBudgetCents sums the nominal monthly allocations of all categories.
func (c Config) TotalBudgetCents() int64 {
	var total int64
	for _, cat := range c.Categories {
		total += cat.BudgetCents
	}
	return total
}

// Initialized reports whether the configuration has been set up at all.
func (c Config) Initialized() bool {
	return !c.CreatedAt.IsZero() || len(c.Participants) > 0 || len(c.Categories) > 0
}

// HasParticipantName reports whether a participant with the given name exists,
// compared case-insensitively. exceptID skips one entry (for renames).
func (c Config) HasParticipantName(name, exceptID string) bool {
	for _, p := range c.Participants {
		if p.ID != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// HasCategoryName is the category analogue of HasParticipantName.
func (c Config) HasCategoryName(name, exceptID string) bool {
	for _, cat := range c.Categories {
		if cat.ID != exceptID && strings.EqualFold(cat.Name, name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out across goroutines.
func (c Config) Clone() Config {
	out := c
	out.Participants = append([]Participant(nil), c.Participants...)
	out.Categories = append([]Category(nil), c.Categories...)
	return out
}
