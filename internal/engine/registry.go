package engine

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
	"fiscalia/internal/repo"
)

// RegisterFiscalRequest carries the fields needed to register a fiscal.
type RegisterFiscalRequest struct {
	Name       string
	Email      string
	FiscaliaID int64
}

func (r RegisterFiscalRequest) normalize() RegisterFiscalRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	return r
}

// Validate checks the request without touching storage.
func (r RegisterFiscalRequest) Validate() error {
	r = r.normalize()
	if r.Name == "" {
		return errs.Validation(errs.CodeRequiredField, "nombre", "nombre is required")
	}
	if r.Email == "" {
		return errs.Validation(errs.CodeRequiredField, "correo", "correo is required")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return errs.Validation(errs.CodeInvalidField, "correo", fmt.Sprintf("correo %q is not a valid address", r.Email))
	}
	if r.FiscaliaID <= 0 {
		return errs.Validation(errs.CodeInvalidField, "id_fiscalia", "id_fiscalia must be a positive integer")
	}
	return nil
}

// RegisterFiscal validates and stores a new fiscal.
func (e Engine) RegisterFiscal(ctx context.Context, req RegisterFiscalRequest) (domain.Fiscal, error) {
	if err := req.Validate(); err != nil {
		return domain.Fiscal{}, err
	}
	req = req.normalize()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Fiscal{}, e.storageErr(err, "register fiscal")
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetFiscalia(ctx, tx, req.FiscaliaID); err != nil {
		if isNotFound(err) {
			return domain.Fiscal{}, errs.Validation(errs.CodeFiscaliaNotFound, "id_fiscalia", fmt.Sprintf("fiscalia %d does not exist", req.FiscaliaID))
		}
		return domain.Fiscal{}, e.storageErr(err, "register fiscal")
	}
	taken, err := e.Repo.EmailTaken(ctx, tx, req.Email)
	if err != nil {
		return domain.Fiscal{}, e.storageErr(err, "register fiscal")
	}
	if taken {
		return domain.Fiscal{}, errs.Conflict(errs.CodeEmailTaken, "correo", fmt.Sprintf("correo %s is already registered", req.Email))
	}
	f, err := e.Repo.InsertFiscal(ctx, tx, domain.Fiscal{
		Name:       req.Name,
		Email:      req.Email,
		FiscaliaID: req.FiscaliaID,
		CreatedAt:  e.timestamp(),
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Fiscal{}, errs.Conflict(errs.CodeEmailTaken, "correo", fmt.Sprintf("correo %s is already registered", req.Email))
		}
		return domain.Fiscal{}, e.storageErr(err, "register fiscal")
	}
	if err := tx.Commit(); err != nil {
		return domain.Fiscal{}, e.storageErr(err, "register fiscal")
	}
	e.Metrics.FiscalesRegistered.Inc()
	e.log().Info("fiscal registered", zap.Int64("fiscal_id", f.ID), zap.Int64("fiscalia_id", f.FiscaliaID))
	return f, nil
}

func (e Engine) FiscalExists(ctx context.Context, id int64) (bool, error) {
	ok, err := e.Repo.FiscalExists(ctx, nil, id)
	if err != nil {
		return false, e.storageErr(err, "fiscal exists")
	}
	return ok, nil
}

func (e Engine) GetFiscal(ctx context.Context, id int64) (domain.Fiscal, error) {
	f, err := e.Repo.GetFiscal(ctx, nil, id)
	if err != nil {
		if isNotFound(err) {
			return domain.Fiscal{}, errs.NotFound(errs.CodeFiscalNotFound, "fiscal", fmt.Sprintf("fiscal %d not found", id))
		}
		return domain.Fiscal{}, e.storageErr(err, "get fiscal")
	}
	return f, nil
}

func (e Engine) ListFiscales(ctx context.Context) ([]domain.Fiscal, error) {
	items, err := e.Repo.ListFiscales(ctx)
	if err != nil {
		return nil, e.storageErr(err, "list fiscales")
	}
	return items, nil
}

func (e Engine) ListFiscalias(ctx context.Context) ([]domain.Fiscalia, error) {
	items, err := e.Repo.ListFiscalias(ctx)
	if err != nil {
		return nil, e.storageErr(err, "list fiscalias")
	}
	return items, nil
}
