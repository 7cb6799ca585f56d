package server

import (
	"fiscalia/internal/domain"
	"fiscalia/internal/engine"
)

// Request payloads. Fields are optional in the schema so the engine reports
// which one is missing.

type RegisterFiscalRequest struct {
	Name       string `json:"nombre,omitempty" example:"Ana Pérez"`
	Email      string `json:"correo,omitempty" example:"ana@mp.gob"`
	FiscaliaID int64  `json:"id_fiscalia,omitempty" example:"1"`
}

func (r RegisterFiscalRequest) toEngine() engine.RegisterFiscalRequest {
	return engine.RegisterFiscalRequest{Name: r.Name, Email: r.Email, FiscaliaID: r.FiscaliaID}
}

type CreateCaseRequest struct {
	Description string `json:"descripcion,omitempty" example:"theft report"`
	Status      string `json:"estado,omitempty" example:"Pendiente"`
	FiscalID    int64  `json:"id_fiscal,omitempty" example:"1"`
}

func (r CreateCaseRequest) toEngine() engine.CreateCaseRequest {
	return engine.CreateCaseRequest{Description: r.Description, Status: r.Status, FiscalID: r.FiscalID}
}

type TransitionCaseRequest struct {
	Status string `json:"estado,omitempty" example:"EnProceso"`
}

type ReassignCaseRequest struct {
	CaseID      int64  `json:"id_caso,omitempty" example:"1"`
	NewFiscalID int64  `json:"id_nuevo_fiscal,omitempty" example:"2"`
	Reason      string `json:"motivo,omitempty" example:"workload balancing"`
}

func (r ReassignCaseRequest) toEngine() engine.ReassignCaseRequest {
	return engine.ReassignCaseRequest{CaseID: r.CaseID, NewFiscalID: r.NewFiscalID, Reason: r.Reason}
}

// Response payloads

type ReassignResponse struct {
	Message string                      `json:"mensaje" example:"Caso #1 reasignado de Ana a Beto"`
	Entry   domain.ReassignmentLogEntry `json:"reasignacion"`
}

type paginatedReassignments struct {
	Items      []domain.ReassignmentLogEntry `json:"items"`
	NextCursor string                        `json:"next_cursor,omitempty"`
}
