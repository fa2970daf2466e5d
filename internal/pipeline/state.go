package pipeline

// State is the orchestrator's position in the fixed step sequence.
// Transitions only ever move forward; any failure jumps straight to
// StateFailed and the remaining steps are skipped.
type State int

const (
	StateIdle State = iota
	StateApproving
	StateSwapping
	StateApprovingSupply
	StateSupplying
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateApproving:       "approving",
	StateSwapping:        "swapping",
	StateApprovingSupply: "approving_supply",
	StateSupplying:       "supplying",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
