package domain

import "fmt"

// CaseStatus is the closed set of states a case can be in.
type CaseStatus string

const (
	StatusPending   CaseStatus = "Pendiente"
	StatusInProcess CaseStatus = "EnProceso"
	StatusClosed    CaseStatus = "Cerrado"
)

// AllStatuses lists every status in reporting order.
var AllStatuses = []CaseStatus{StatusPending, StatusInProcess, StatusClosed}

// CreatableStatuses are the only values accepted when a case is opened.
// EnProceso is reached through an explicit transition.
var CreatableStatuses = []CaseStatus{StatusPending, StatusClosed}

var transitions = map[CaseStatus][]CaseStatus{
	StatusPending:   {StatusInProcess, StatusClosed},
	StatusInProcess: {StatusPending, StatusClosed},
	StatusClosed:    {},
}

// ParseCaseStatus matches s exactly against the known statuses.
func ParseCaseStatus(s string) (CaseStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown case status %q", s)
}

func (s CaseStatus) Valid() bool {
	_, err := ParseCaseStatus(string(s))
	return err == nil
}

// Creatable reports whether a case may be created in this status.
func (s CaseStatus) Creatable() bool {
	for _, st := range CreatableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a permitted successor of s.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}
