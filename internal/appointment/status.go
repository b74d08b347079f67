package appointment

import (
	"strings"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	StatusRejected  Status = "REJECTED"
	StatusFinalized Status = "FINALIZED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the full whitelist; anything not listed is an invalid transition.
var transitions = map[Status][]Status{
	StatusPending:   {StatusScheduled, StatusRejected, StatusCancelled, StatusFinalized},
	StatusScheduled: {StatusRejected, StatusCancelled, StatusFinalized},
}

var aliases = map[string]Status{
	"PENDENTE":   StatusPending,
	"AGENDADA":   StatusScheduled,
	"CONFIRMADA": StatusScheduled,
	"CONFIRMED":  StatusScheduled,
	"REJEITADA":  StatusRejected,
	"FINALIZADA": StatusFinalized,
	"CANCELADA":  StatusCancelled,
	"CANCELED":   StatusCancelled,
}

func AllStatuses() []Status {
	return []Status{StatusPending, StatusScheduled, StatusRejected, StatusFinalized, StatusCancelled}
}

// ParseStatus is case-insensitive and accepts the clinic's Portuguese status names.
func ParseStatus(raw string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	for _, s := range AllStatuses() {
		if string(s) == name {
			return s, nil
		}
	}
	if s, ok := aliases[name]; ok {
		return s, nil
	}
	return "", apperr.Validation("invalid status %q", raw)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusRejected, StatusFinalized, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusFinalized || s == StatusCancelled
}

// RequiresReason is true for the negative terminal states.
func (s Status) RequiresReason() bool {
	return s == StatusRejected || s == StatusCancelled
}

// HoldsSlot reports whether an appointment in this status keeps its slot taken.
func (s Status) HoldsSlot() bool {
	return !s.RequiresReason()
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}
