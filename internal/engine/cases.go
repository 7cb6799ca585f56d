package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
	"fiscalia/internal/repo"
)

// CreateCaseRequest carries the fields needed to open a case.
type CreateCaseRequest struct {
	Description string
	Status      string
	FiscalID    int64
}

// Validate checks the request without touching storage.
func (r CreateCaseRequest) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return errs.Validation(errs.CodeRequiredField, "descripcion", "descripcion is required")
	}
	st, err := domain.ParseCaseStatus(r.Status)
	if err != nil || !st.Creatable() {
		return errs.Validation(errs.CodeInvalidStatus, "estado",
			fmt.Sprintf("estado %q not allowed; a case is created as %s or %s", r.Status, domain.StatusPending, domain.StatusClosed))
	}
	if r.FiscalID <= 0 {
		return errs.Validation(errs.CodeInvalidField, "id_fiscal", "id_fiscal must be a positive integer")
	}
	return nil
}

// CreateCase opens a case with exactly the status supplied.
func (e Engine) CreateCase(ctx context.Context, req CreateCaseRequest) (domain.Case, error) {
	if err := req.Validate(); err != nil {
		return domain.Case{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, e.storageErr(err, "create case")
	}
	defer tx.Rollback()

	ok, err := e.Repo.FiscalExists(ctx, tx, req.FiscalID)
	if err != nil {
		return domain.Case{}, e.storageErr(err, "create case")
	}
	if !ok {
		return domain.Case{}, errs.Validation(errs.CodeFiscalNotFound, "id_fiscal", fmt.Sprintf("fiscal %d does not exist", req.FiscalID))
	}
	now := e.timestamp()
	c, err := e.Repo.InsertCase(ctx, tx, domain.Case{
		Description: strings.TrimSpace(req.Description),
		Status:      domain.CaseStatus(req.Status),
		FiscalID:    req.FiscalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Case{}, e.storageErr(err, "create case")
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, e.storageErr(err, "create case")
	}
	e.Metrics.CasesCreated.WithLabelValues(string(c.Status)).Inc()
	e.log().Info("case created", zap.Int64("case_id", c.ID), zap.String("status", string(c.Status)), zap.Int64("fiscal_id", c.FiscalID))
	return c, nil
}

func (e Engine) GetCase(ctx context.Context, id int64) (domain.Case, error) {
	c, err := e.Repo.GetCase(ctx, nil, id)
	if err != nil {
		if isNotFound(err) {
			return domain.Case{}, errs.NotFound(errs.CodeCaseNotFound, "caso", fmt.Sprintf("case %d not found", id))
		}
		return domain.Case{}, e.storageErr(err, "get case")
	}
	return c, nil
}

// ListCases returns all cases ordered by id.
func (e Engine) ListCases(ctx context.Context) ([]domain.Case, error) {
	return e.FilterCases(ctx, repo.CaseFilters{})
}

func (e Engine) FilterCases(ctx context.Context, f repo.CaseFilters) ([]domain.Case, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errs.Validation(errs.CodeInvalidStatus, "estado", fmt.Sprintf("unknown estado %q", f.Status))
	}
	items, err := e.Repo.ListCases(ctx, f)
	if err != nil {
		return nil, e.storageErr(err, "list cases")
	}
	return items, nil
}

// TransitionCaseRequest moves a case to another status.
type TransitionCaseRequest struct {
	CaseID int64
	Status string
}

// TransitionCase applies a permitted status change. It is the only way a
// case reaches EnProceso.
func (e Engine) TransitionCase(ctx context.Context, req TransitionCaseRequest) (domain.Case, error) {
	next, err := domain.ParseCaseStatus(req.Status)
	if err != nil {
		return domain.Case{}, errs.Validation(errs.CodeInvalidStatus, "estado", fmt.Sprintf("unknown estado %q", req.Status))
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, e.storageErr(err, "transition case")
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCase(ctx, tx, req.CaseID)
	if err != nil {
		if isNotFound(err) {
			return domain.Case{}, errs.NotFound(errs.CodeCaseNotFound, "caso", fmt.Sprintf("case %d not found", req.CaseID))
		}
		return domain.Case{}, e.storageErr(err, "transition case")
	}
	if !c.Status.CanTransitionTo(next) {
		return domain.Case{}, errs.Conflict(errs.CodeInvalidTransition, "estado", fmt.Sprintf("case %d cannot move from %s to %s", c.ID, c.Status, next))
	}
	now := e.timestamp()
	if err := e.Repo.UpdateCaseStatus(ctx, tx, c.ID, next, now); err != nil {
		return domain.Case{}, e.storageErr(err, "transition case")
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, e.storageErr(err, "transition case")
	}
	e.Metrics.CaseTransitions.WithLabelValues(string(next)).Inc()
	e.log().Info("case status changed", zap.Int64("case_id", c.ID), zap.String("from", string(c.Status)), zap.String("to", string(next)))
	c.Status = next
	c.UpdatedAt = now
	return c, nil
}
