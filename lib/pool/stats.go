package pool

import "fmt"

// State is the lifecycle state of a pool.
type State int

const (
	// StateOpen accepts acquires.
	StateOpen State = iota
	// StateShuttingDown rejects acquires and waits for leases to return.
	StateShuttingDown
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON, TOML and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name as produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateOpen, StateShuttingDown, StateClosed} {
		if string(text) == st.String() {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown pool state %q", text)
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	// Name is the pool name.
	Name string `json:"name"`
	// MaxSize is MaximumPoolSize.
	MaxSize int `json:"max_size"`
	// MinIdle is MinimumIdle.
	MinIdle int `json:"min_idle"`
	// Total is the number of open physical connections.
	Total int `json:"total"`
	// Active is the number of connections borrowed or being validated.
	Active int `json:"active"`
	// Idle is the number of connections ready to borrow.
	Idle int `json:"idle"`
	// Waiting is the number of callers parked in Acquire.
	Waiting int `json:"waiting"`

	TotalCreated       uint64 `json:"total_created"`
	TotalClosed        uint64 `json:"total_closed"`
	TotalTimedOut      uint64 `json:"total_timed_out"`
	TotalBorrowed      uint64 `json:"total_borrowed"`
	AcquireCount       uint64 `json:"acquire_count"`
	AcquireFailed      uint64 `json:"acquire_failed"`
	ValidationFailures uint64 `json:"validation_failures"`

	State State `json:"state"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.slots)
	return Stats{
		Name:               p.cfg.Name,
		MaxSize:            p.cfg.MaximumPoolSize,
		MinIdle:            p.cfg.MinimumIdle,
		Total:              total,
		Active:             total - len(p.idle),
		Idle:               len(p.idle),
		Waiting:            p.waiters.Len(),
		TotalCreated:       p.created,
		TotalClosed:        p.closed,
		TotalTimedOut:      p.timedOut,
		TotalBorrowed:      p.borrowed,
		AcquireCount:       p.acquireCount,
		AcquireFailed:      p.acquireFailed,
		ValidationFailures: p.validationFailures,
		State:              p.state,
	}
}
