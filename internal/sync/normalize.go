package sync

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"kitty/internal/core"
)

// NormalizeRecord coerces an inbound record of heterogeneous shape into the
// canonical Transaction schema. Field precedence, in order:
//
//   - id: explicit "id", else a freshly generated transaction id
//   - date: explicit "date", else the first 10 characters of a "ts" or
//     "timestamp" field, else today
//   - kind: explicit "kind", else expense when a category reference is
//     present, else contribution
//   - participant: "participantId", else "personId", else "userId", else "user"
//   - category: "categoryId", else "category"
//   - amount: "amountCents" verbatim when it is an integer minor-unit value,
//     else "amount" parsed as a decimal string
//
// Only undecodable JSON is an error; missing fields always default.
func NormalizeRecord(raw json.RawMessage, now time.Time) (core.Transaction, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.Transaction{}, fmt.Errorf("decode inbound record: %w", err)
	}

	tx := core.Transaction{
		ID:            stringField(fields, "id"),
		Date:          stringField(fields, "date"),
		ParticipantID: stringField(fields, "participantId", "personId", "userId", "user"),
		CategoryID:    stringField(fields, "categoryId", "category"),
		Notes:         stringField(fields, "notes"),
	}

	if tx.ID == "" {
		tx.ID = core.NewTransactionID()
	}
	if tx.Date == "" {
		if ts := stringField(fields, "ts", "timestamp"); len(ts) >= 10 {
			tx.Date = ts[:10]
		} else {
			tx.Date = now.Format("2006-01-02")
		}
	}

	if kind := stringField(fields, "kind"); kind != "" {
		tx.Kind = core.TransactionKind(kind)
	} else if tx.CategoryID != "" {
		tx.Kind = core.KindExpense
	} else {
		tx.Kind = core.KindContribution
	}

	tx.AmountCents = amountField(fields)

	if created := stringField(fields, "createdAt", "updatedAt"); created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			tx.CreatedAt = t
		}
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}

	return tx, nil
}

// NormalizeBatch normalizes a batch, dropping only records that fail to
// decode at all.
func NormalizeBatch(raws []json.RawMessage, now time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx, err := NormalizeRecord(raw, now)
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func amountField(fields map[string]any) int64 {
	// JSON numbers arrive as float64; an integral value is already cents.
	if v, ok := fields["amountCents"].(float64); ok && v == math.Trunc(v) {
		return int64(v)
	}
	switch v := fields["amount"].(type) {
	case float64:
		return int64(math.Round(v * 100))
	case string:
		if cents, err := core.ParseDecimalToCents(v); err == nil {
			return cents
		}
	}
	return 0
}
