package switchbot

// State is the canonical vacuum activity.
type State string

const (
	StateIdle      State = "idle"
	StateCleaning  State = "cleaning"
	StatePaused    State = "paused"
	StateReturning State = "returning"
	StateDocked    State = "docked"
	StateError     State = "error"
)

// States lists every canonical state in display order.
var States = []State{StateIdle, StateCleaning, StatePaused, StateReturning, StateDocked, StateError}

var workingStatusStates = map[string]State{
	"StandBy":          StateIdle,
	"Clearing":         StateCleaning,
	"Paused":           StatePaused,
	"GotoChargeBase":   StateReturning,
	"Charging":         StateDocked,
	"ChargeDone":       StateIdle,
	"Dormant":          StateIdle,
	"InTrouble":        StateError,
	"InDustCollecting": StateReturning,
}

// StateForStatus maps a vendor workingStatus. Unrecognized values are errors.
func StateForStatus(status string) State {
	if state, ok := workingStatusStates[status]; ok {
		return state
	}
	return StateError
}
