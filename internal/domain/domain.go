package domain

type Fiscalia struct {
	ID   int64  `json:"id_fiscalia"`
	Name string `json:"nombre"`
}

type Fiscal struct {
	ID         int64  `json:"id_fiscal"`
	Name       string `json:"nombre"`
	Email      string `json:"correo"`
	FiscaliaID int64  `json:"id_fiscalia"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Case struct {
	ID          int64      `json:"id_caso"`
	Description string     `json:"descripcion"`
	Status      CaseStatus `json:"estado" enum:"Pendiente,EnProceso,Cerrado"`
	FiscalID    int64      `json:"id_fiscal"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

// ReassignmentLogEntry is an immutable audit record. Descriptions and names are
// captured at reassignment time and never follow later edits.
type ReassignmentLogEntry struct {
	ID                 int64  `json:"id"`
	CaseID             int64  `json:"id_caso"`
	CaseDescription    string `json:"descripcion_caso"`
	PreviousFiscalID   int64  `json:"id_fiscal_anterior"`
	PreviousFiscalName string `json:"nombre_fiscal_anterior"`
	NewFiscalID        int64  `json:"id_fiscal_nuevo"`
	NewFiscalName      string `json:"nombre_fiscal_nuevo"`
	Reason             string `json:"motivo,omitempty"`
	Timestamp          string `json:"fecha" format:"date-time"`
}

type StatisticsRow struct {
	FiscalID       int64  `json:"id_fiscal"`
	FiscalName     string `json:"nombre_fiscal"`
	TotalCases     int    `json:"total_casos"`
	PendingCount   int    `json:"pendientes"`
	InProcessCount int    `json:"en_proceso"`
	ClosedCount    int    `json:"cerrados"`
}

type StatusCount struct {
	Status CaseStatus `json:"estado" enum:"Pendiente,EnProceso,Cerrado"`
	Count  int        `json:"cantidad"`
}
