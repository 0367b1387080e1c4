package session

import "time"

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeMiss      Outcome = "miss"
	OutcomeGuard     Outcome = "guard"
	OutcomeTransport Outcome = "transport"
	OutcomeRejected  Outcome = "rejected"
)

// Entry is one finished mutating action, as written to the action journal and index.
type Entry struct {
	At      time.Time `json:"at"`
	UserID  string    `json:"user_id"`
	Action  Action    `json:"action"`
	Outcome Outcome   `json:"outcome"`
	Message string    `json:"message,omitempty"`
	// Money and Worms are taken from the snapshot after the action settled.
	Money int64 `json:"money"`
	Worms int   `json:"worms"`
}

type Recorder interface {
	Record(Entry) error
}
