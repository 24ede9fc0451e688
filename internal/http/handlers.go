package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kitty/internal/calc"
	"kitty/internal/core"
	"kitty/internal/events"
	"kitty/internal/store"
	kittysync "kitty/internal/sync"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateName),
		errors.Is(err, core.ErrLastParticipant),
		errors.Is(err, core.ErrLastCategory):
		status = http.StatusConflict
	case errors.Is(err, store.ErrUnrecognizedImport):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, core.ErrMissingParticipant),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNegativeBudget):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnknownKind, err)
	}
	return nil
}

// resolveMonth picks the month to report on: an explicit ?month= wins and is
// remembered as the last viewed month, otherwise the remembered month,
// otherwise the current calendar month.
func (s *Server) resolveMonth(r *http.Request) core.MonthKey {
	if q := strings.TrimSpace(r.URL.Query().Get("month")); q != "" {
		m := core.MonthKey(q)
		if m.Valid() {
			if err := s.store.SetMeta(r.Context(), store.MetaLastMonth, string(m)); err != nil {
				slog.DebugContext(r.Context(), "Failed to remember month", "error", err)
			}
			return m
		}
	}
	if m := core.MonthKey(s.store.Meta(store.MetaLastMonth)); m.Valid() {
		return m
	}
	return core.MonthOfTime(time.Now())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := s.resolveMonth(r)
	key := fmt.Sprintf("%s:%d", month, s.store.Revision())

	summary, ok := s.summaryCache.Get(key)
	if !ok {
		summary = calc.ComputeSummary(s.store.Config(), s.store.List(), month)
		s.summaryCache.Set(key, summary)
	}

	writeJSON(w, http.StatusOK, struct {
		Month core.MonthKey `json:"month"`
		calc.Summary
	}{Month: month, Summary: summary})
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	month := s.resolveMonth(r)
	key := fmt.Sprintf("%s:%d", month, s.store.Revision())

	summary, ok := s.categoryCache.Get(key)
	if !ok {
		summary = calc.ComputeCategorySummary(s.store.Config().Categories, s.store.List(), month)
		s.categoryCache.Set(key, summary)
	}

	writeJSON(w, http.StatusOK, struct {
		Month core.MonthKey `json:"month"`
		calc.CategorySummary
	}{Month: month, CategorySummary: summary})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var txs []core.Transaction
	if q := strings.TrimSpace(r.URL.Query().Get("month")); q != "" {
		m := core.MonthKey(q)
		if !m.Valid() {
			writeError(w, fmt.Errorf("%w: bad month %q", core.ErrInvalidDate, q))
			return
		}
		txs = s.store.ListMonth(m)
	} else {
		txs = s.store.List()
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions []core.Transaction `json:"transactions"`
	}{Transactions: txs})
}

// transactionRequest is the mutation payload. Amount may arrive as exact
// cents or as a decimal string; the sign is normalized from the kind.
type transactionRequest struct {
	Date          string `json:"date"`
	Kind          string `json:"kind"`
	ParticipantID string `json:"participantId,omitempty"`
	CategoryID    string `json:"categoryId,omitempty"`
	AmountCents   *int64 `json:"amountCents,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (req *transactionRequest) toTransaction(id string, createdAt time.Time) (core.Transaction, error) {
	var cents int64
	switch {
	case req.AmountCents != nil:
		cents = *req.AmountCents
	case req.Amount != "":
		parsed, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			return core.Transaction{}, err
		}
		cents = parsed
	default:
		return core.Transaction{}, fmt.Errorf("%w: missing amount", core.ErrInvalidAmount)
	}
	if cents < 0 {
		cents = -cents
	}

	kind := core.TransactionKind(req.Kind)
	if kind == core.KindExpense {
		cents = -cents
	}

	tx := core.Transaction{
		ID:            id,
		Date:          req.Date,
		Kind:          kind,
		ParticipantID: req.ParticipantID,
		CategoryID:    req.CategoryID,
		AmountCents:   cents,
		Notes:         req.Notes,
		CreatedAt:     createdAt,
	}
	return tx, tx.Validate()
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tx, err := req.toTransaction(core.NewTransactionID(), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Upsert(tx); err != nil {
		writeError(w, err)
		return
	}

	s.afterMutation(r.Context(), tx)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, ok := s.store.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id))
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tx, err := req.toTransaction(id, existing.CreatedAt)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Upsert(tx); err != nil {
		writeError(w, err)
		return
	}

	updated, _ := s.store.Get(id)
	s.afterMutation(r.Context(), updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Delete(id) {
		writeError(w, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id))
		return
	}

	// Deletion stays local; the remote feed has no tombstones.
	s.publishMutation(r.Context(), events.NewDeleteMessage(id))
	w.WriteHeader(http.StatusNoContent)
}

// afterMutation fans a local write out to the remote feed and the event
// stream. Both paths are fire-and-forget. A local write also wakes the
// reconciler so entries authored elsewhere are folded in promptly.
func (s *Server) afterMutation(ctx context.Context, tx core.Transaction) {
	if s.reconciler != nil {
		s.reconciler.PushEntry(tx)
		s.reconciler.Wake()
	}
	s.publishMutation(ctx, events.NewUpsertMessage(tx))
}

func (s *Server) publishMutation(ctx context.Context, msg *events.MutationMessage) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishMutation(ctx, msg); err != nil {
			slog.DebugContext(ctx, "Mutation event publish failed", "op", msg.Op, "id", msg.ID, "error", err)
		}
	}()
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Config())
}

type nameRequest struct {
	Name string `json:"name"`
}

type categoryRequest struct {
	Name        string `json:"name"`
	BudgetCents int64  `json:"budgetCents"`
	Budget      string `json:"budget,omitempty"`
}

func (req *categoryRequest) budgetCents() (int64, error) {
	if req.Budget != "" {
		return core.ParseDecimalToCents(req.Budget)
	}
	return req.BudgetCents, nil
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.store.AddParticipant(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleRenameParticipant(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.RenameParticipant(r.PathValue("id"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Config())
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveParticipant(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	budget, err := req.budgetCents()
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.store.AddCategory(req.Name, budget)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	budget, err := req.budgetCents()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpdateCategory(r.PathValue("id"), req.Name, budget); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Config())
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveCategory(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="kitty-export.json"`)
	writeJSON(w, http.StatusOK, s.store.ExportDocument())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("read body: %w", err))
		return
	}
	if err := s.store.ImportDocument(body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions int `json:"transactions"`
	}{Transactions: len(s.store.List())})
}

func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil || !s.reconciler.Enabled() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "remote sync is not configured"})
		return
	}

	var err error
	mode := r.URL.Query().Get("mode")
	if mode == "full" {
		err = s.reconciler.PullFull(r.Context())
	} else {
		err = s.reconciler.PullIncremental(r.Context())
	}

	switch {
	case errors.Is(err, kittysync.ErrPullInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, struct {
			Revision int64 `json:"revision"`
		}{Revision: s.store.Revision()})
	}
}

func (s *Server) handleSyncBackup(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil || !s.reconciler.Enabled() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "remote sync is not configured"})
		return
	}
	if err := s.reconciler.PushBackup(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
