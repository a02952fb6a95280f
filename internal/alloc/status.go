package alloc

// State is the lifecycle of a horizon's book. Both halted states are
// one-way: a Blocked book stays blocked for the run even if the drawdown
// recovers, and a Killed book stays down until manually reset.
type State string

const (
	StateActive  State = "active"
	StateBlocked State = "blocked"
	StateKilled  State = "killed"
)

type Status struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func Active() Status                { return Status{State: StateActive} }
func Blocked(reason string) Status  { return Status{State: StateBlocked, Reason: reason} }
func Killed(reason string) Status   { return Status{State: StateKilled, Reason: reason} }

// Open reports whether the book accepts new reservations.
func (s Status) Open() bool { return s.State == StateActive }
