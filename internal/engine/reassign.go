package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fiscalia/internal/audit"
	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
	"fiscalia/internal/repo"
)

// ReassignCaseRequest moves a case to another fiscal. Reason is optional.
type ReassignCaseRequest struct {
	CaseID      int64
	NewFiscalID int64
	Reason      string
}

// ReassignCase changes the fiscal of a case and appends the audit entry in the
// same transaction. Checks run in a fixed order: the case must exist
// (NotFound), the new fiscal must exist (Validation), and unless the config
// allows it the new fiscal must differ from the current one (Conflict). Any
// failure leaves both the case and the log untouched.
func (e Engine) ReassignCase(ctx context.Context, req ReassignCaseRequest) (domain.ReassignmentLogEntry, error) {
	entry, err := e.reassign(ctx, req)
	if err != nil {
		e.Metrics.ReassignmentFailures.WithLabelValues(string(errs.KindOf(err))).Inc()
		e.log().Warn("reassignment rejected",
			zap.Int64("case_id", req.CaseID),
			zap.Int64("new_fiscal_id", req.NewFiscalID),
			zap.Error(err),
		)
		return domain.ReassignmentLogEntry{}, err
	}
	e.Metrics.Reassignments.Inc()
	e.log().Info("case reassigned",
		zap.Int64("case_id", entry.CaseID),
		zap.Int64("previous_fiscal_id", entry.PreviousFiscalID),
		zap.Int64("new_fiscal_id", entry.NewFiscalID),
		zap.Int64("log_id", entry.ID),
	)
	return entry, nil
}

func (e Engine) reassign(ctx context.Context, req ReassignCaseRequest) (domain.ReassignmentLogEntry, error) {
	e.reassignMu.Lock()
	defer e.reassignMu.Unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "reassign case")
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCase(ctx, tx, req.CaseID)
	if err != nil {
		if isNotFound(err) {
			return domain.ReassignmentLogEntry{}, errs.NotFound(errs.CodeCaseNotFound, "caso", fmt.Sprintf("case %d not found", req.CaseID))
		}
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "reassign case")
	}
	newFiscal, err := e.Repo.GetFiscal(ctx, tx, req.NewFiscalID)
	if err != nil {
		if isNotFound(err) {
			return domain.ReassignmentLogEntry{}, unknownFiscal(req.NewFiscalID)
		}
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "reassign case")
	}
	if c.FiscalID == newFiscal.ID && !e.Config.Reassignment.AllowSameFiscal {
		return domain.ReassignmentLogEntry{}, errs.Conflict(errs.CodeSameFiscal, "fiscal",
			fmt.Sprintf("case %d is already assigned to fiscal %d", c.ID, newFiscal.ID))
	}

	at := e.now()
	previousID, err := e.Repo.ReassignCaseTx(ctx, tx, c.ID, newFiscal.ID, at.UTC().Format(time.RFC3339))
	if err != nil {
		switch {
		case isNotFound(err):
			return domain.ReassignmentLogEntry{}, errs.NotFound(errs.CodeCaseNotFound, "caso", fmt.Sprintf("case %d not found", req.CaseID))
		case errors.Is(err, repo.ErrUnknownFiscal):
			return domain.ReassignmentLogEntry{}, unknownFiscal(req.NewFiscalID)
		}
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "reassign case")
	}
	previous, err := e.Repo.GetFiscal(ctx, tx, previousID)
	if err != nil {
		return domain.ReassignmentLogEntry{}, e.storageErr(fmt.Errorf("previous fiscal %d: %w", previousID, err), "reassign case")
	}

	entry, err := e.Audit.Append(ctx, tx, audit.Snapshot{
		Case:           c,
		PreviousFiscal: previous,
		NewFiscal:      newFiscal,
		Reason:         req.Reason,
		At:             at,
	})
	if err != nil {
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "append reassignment log")
	}
	if err := tx.Commit(); err != nil {
		return domain.ReassignmentLogEntry{}, e.storageErr(err, "reassign case")
	}
	return entry, nil
}

func unknownFiscal(id int64) error {
	return errs.Validation(errs.CodeFiscalNotFound, "fiscal", fmt.Sprintf("fiscal %d does not exist", id))
}

// ConfirmationMessage renders the user-facing text for a completed reassignment.
func ConfirmationMessage(e domain.ReassignmentLogEntry) string {
	return fmt.Sprintf("Caso #%d reasignado de %s a %s", e.CaseID, e.PreviousFiscalName, e.NewFiscalName)
}

// ListReassignments returns the audit log oldest first.
func (e Engine) ListReassignments(ctx context.Context) ([]domain.ReassignmentLogEntry, error) {
	items, err := e.Audit.List(ctx)
	if err != nil {
		return nil, e.storageErr(err, "list reassignments")
	}
	return items, nil
}

// ReassignmentsAfter pages through the audit log by id.
func (e Engine) ReassignmentsAfter(ctx context.Context, cursor int64, limit int) ([]domain.ReassignmentLogEntry, error) {
	items, err := e.Audit.After(ctx, cursor, limit)
	if err != nil {
		return nil, e.storageErr(err, "list reassignments")
	}
	return items, nil
}

func (e Engine) LatestReassignmentID(ctx context.Context) (int64, error) {
	id, err := e.Audit.Latest(ctx)
	if err != nil {
		return 0, e.storageErr(err, "latest reassignment")
	}
	return id, nil
}
