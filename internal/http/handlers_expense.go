package http

import (
	"errors"
	"net/http"
	"strings"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/tracker"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
	Total    core.Money     `json:"total"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError("Invalid filter: " + err.Error()).Write(w)
		return
	}
	expenses := s.store.Filter(filter)
	NewJSONResponse().Data(expenseList{
		Expenses: expenses,
		Count:    len(expenses),
		Total:    core.Total(expenses),
	}).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		NotFoundError(msgNotFound).Write(w)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parser, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	form := parseExpenseForm(parser)
	if err := s.validate.Struct(form); err != nil {
		s.rejectInput(w, r, err)
		return
	}
	in, err := form.toInput()
	if err != nil {
		s.rejectInput(w, r, err)
		return
	}

	e, err := s.store.Add(ctx, in)
	if err != nil {
		if core.IsValidationError(err) {
			s.rejectInput(w, r, err)
			return
		}
		logger.ErrorContext(ctx, "Failed to add expense", applog.FieldError, err)
		InternalServerError(msgStorageFailed).Write(w)
		return
	}

	s.invalidateViews()
	s.appMetrics.record(tracker.EventCreated)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		Data(e).
		Success(msgExpenseAdded).
		Write(w)
}

// handleUpdateExpense serves both PUT, which replaces every field, and PATCH,
// which replaces only the fields sent.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	id := r.PathValue("id")

	if _, ok := s.store.Get(id); !ok {
		NotFoundError(msgNotFound).Write(w)
		return
	}

	parser, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	var patch core.ExpensePatch
	if r.Method == http.MethodPatch {
		form := parseExpensePatchForm(parser)
		if err := s.validate.Struct(form); err != nil {
			s.rejectInput(w, r, err)
			return
		}
		p, err := form.toPatch()
		if err != nil {
			s.rejectInput(w, r, err)
			return
		}
		patch = p
	} else {
		form := parseExpenseForm(parser)
		if err := s.validate.Struct(form); err != nil {
			s.rejectInput(w, r, err)
			return
		}
		p, err := form.toPatch()
		if err != nil {
			s.rejectInput(w, r, err)
			return
		}
		patch = p
	}

	e, found, err := s.store.Update(ctx, id, patch)
	switch {
	case err != nil && core.IsValidationError(err):
		s.rejectInput(w, r, err)
		return
	case err != nil:
		logger.ErrorContext(ctx, "Failed to update expense", applog.FieldExpenseID, id, applog.FieldError, err)
		InternalServerError(msgStorageFailed).Write(w)
		return
	case !found:
		// Deleted between the lookup and the update.
		NotFoundError(msgNotFound).Write(w)
		return
	}

	s.invalidateViews()
	s.appMetrics.record(tracker.EventUpdated)
	NewJSONResponse().Data(e).Success(msgExpenseUpdated).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	found, err := s.store.Delete(ctx, id)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to delete expense", applog.FieldExpenseID, id, applog.FieldError, err)
		InternalServerError(msgStorageFailed).Write(w)
		return
	}
	if !found {
		NotFoundError(msgNotFound).Write(w)
		return
	}

	s.invalidateViews()
	s.appMetrics.record(tracker.EventDeleted)
	NewJSONResponse().Data(map[string]string{"id": id}).Success(msgExpenseDeleted).Write(w)
}

func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large").Write(w)
			return nil, false
		}
		BadRequestError("Invalid request format").Write(w)
		return nil, false
	}
	return parser, true
}

func (s *Server) rejectInput(w http.ResponseWriter, r *http.Request, err error) {
	errs := fieldErrors(err, s.translator)
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Expense input rejected",
		"fields", strings.Join(fields, ","),
		applog.FieldError, err)
	NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Error(msgInvalidInput).
		FieldErrors(errs).
		Write(w)
}
