package session

import (
	"errors"

	"rybalka.web/internal/transport/httpapi"
)

// Guard reasons. A guard failure never reaches the network.
var (
	ErrBusy              = errors.New("another action is in progress")
	ErrNotLoaded         = errors.New("game state not loaded yet")
	ErrNoWorms           = errors.New("no worms left")
	ErrNoPendingCatch    = errors.New("no fish on the hook")
	ErrBadIndex          = errors.New("no item at that position")
	ErrSlotEmpty         = errors.New("slot is already empty")
	ErrSlotOccupied      = errors.New("slot is occupied")
	ErrUnknownItem       = errors.New("no such item in the shop")
	ErrInsufficientFunds = errors.New("not enough money")
	ErrBadCount          = errors.New("count must be positive")
	ErrBadSlot           = errors.New("unknown slot")
)

type GuardError struct {
	Action Action
	Reason error
}

func (e *GuardError) Error() string { return string(e.Action) + ": " + e.Reason.Error() }

func (e *GuardError) Unwrap() error { return e.Reason }

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindGuard
	KindTransport
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindGuard:
		return "guard"
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	default:
		return "none"
	}
}

// Classify maps an action error onto the three failure kinds. Errors that are
// neither guard nor rejection count as transport failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ge *GuardError
	if errors.As(err, &ge) {
		return KindGuard
	}
	var re *httpapi.RejectedError
	if errors.As(err, &re) {
		return KindRejected
	}
	return KindTransport
}

func (k ErrorKind) outcome() Outcome {
	switch k {
	case KindGuard:
		return OutcomeGuard
	case KindRejected:
		return OutcomeRejected
	case KindTransport:
		return OutcomeTransport
	default:
		return OutcomeOK
	}
}
