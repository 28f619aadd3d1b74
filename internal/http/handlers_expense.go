package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// expenseResponse is the wire shape of an expense. Category is always
// present, null when unset.
type expenseResponse struct {
	ID       string  `json:"_id"`
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
	Category *string `json:"category"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:       e.ID,
		Title:    e.Title,
		Amount:   e.Amount,
		Date:     e.FormattedDate(),
		Category: e.Category,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.List(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeExpenseInput(w, r)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseWritten(r.Context(), applog.OpCreate, e.ID, e.Title, e.Amount, e.CategoryOrEmpty())
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/expenses/"+e.ID).
		Body(toExpenseResponse(e)).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// A bad id is reported before the body is looked at.
	if !core.ValidID(id) {
		writeError(w, r, applog.OpUpdate, core.ErrInvalidID)
		return
	}

	in, err := DecodeExpenseInput(w, r)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	e, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseWritten(r.Context(), applog.OpUpdate, e.ID, e.Title, e.Amount, e.CategoryOrEmpty())
	NewJSONResponse().Body(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		applog.FieldExpenseID, id, applog.FieldOperation, applog.OpDelete)
	NewJSONResponse().Message(msgDeleted).Write(w)
}
