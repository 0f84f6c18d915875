package switchbot

import (
	"context"
	"fmt"
	"sync"
)

// Feature is a capability bit advertised by a vacuum.
type Feature uint32

const (
	FeatureStart Feature = 1 << iota
	FeatureStop
	FeatureReturnHome
	FeatureState
	FeatureBattery
	FeatureStatus
)

const vacuumFeatures = FeatureStart | FeatureStop | FeatureReturnHome | FeatureState | FeatureBattery | FeatureStatus

// VacuumState is the observable state of a vacuum.
type VacuumState struct {
	State   State
	Battery *int
}

// Observer receives every state change of a vacuum.
type Observer func(Device, VacuumState)

// Commander sends a command to a device.
type Commander interface {
	SendCommand(ctx context.Context, deviceID string, cmd Command) error
}

// Vacuum reconciles vendor status reports into canonical state.
//
// Updates are serialized and observers run while the update lock is held, so
// an observer may read State but must not issue commands on the same vacuum.
type Vacuum struct {
	device Device
	api    Commander

	update sync.Mutex

	mu        sync.RWMutex
	state     VacuumState
	known     bool
	observers map[int]Observer
	nextID    int
}

func NewVacuum(api Commander, device Device) *Vacuum {
	return &Vacuum{
		device:    device,
		api:       api,
		observers: make(map[int]Observer),
	}
}

func (v *Vacuum) Device() Device {
	return v.device
}

func (v *Vacuum) SupportedFeatures() Feature {
	return vacuumFeatures
}

// State returns the current state. ok is false until the first report.
func (v *Vacuum) State() (VacuumState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state, v.known
}

// Subscribe registers fn for state changes and returns its cancel func.
func (v *Vacuum) Subscribe(fn Observer) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.observers[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.observers, id)
		v.mu.Unlock()
	}
}

// OnStatusUpdate applies a status report. A nil snapshot or one without a
// working status carries no information and is ignored.
func (v *Vacuum) OnStatusUpdate(snap *Snapshot) {
	if snap == nil || snap.WorkingStatus == nil {
		return
	}
	next := VacuumState{State: StateForStatus(*snap.WorkingStatus), Battery: snap.Battery}
	v.apply(func(VacuumState) VacuumState { return next })
}

func (v *Vacuum) Start(ctx context.Context) error {
	return v.SendCommand(ctx, CommandStart)
}

func (v *Vacuum) Stop(ctx context.Context) error {
	return v.SendCommand(ctx, CommandStop)
}

func (v *Vacuum) ReturnToBase(ctx context.Context) error {
	return v.SendCommand(ctx, CommandDock)
}

// SendCommand forwards cmd to the vendor and on success sets the state the
// command is expected to produce. The next report overwrites it.
func (v *Vacuum) SendCommand(ctx context.Context, cmd Command) error {
	optimistic, ok := commandStates[cmd]
	if !ok {
		return fmt.Errorf("unsupported vacuum command %q", cmd)
	}
	if err := v.api.SendCommand(ctx, v.device.ID, cmd); err != nil {
		return err
	}

	v.apply(func(prev VacuumState) VacuumState {
		return VacuumState{State: optimistic, Battery: prev.Battery}
	})
	return nil
}

var commandStates = map[Command]State{
	CommandStart: StateCleaning,
	CommandStop:  StatePaused,
	CommandDock:  StateReturning,
}

func (v *Vacuum) apply(transition func(VacuumState) VacuumState) {
	v.update.Lock()
	defer v.update.Unlock()

	v.mu.Lock()
	next := transition(v.state)
	v.state = next
	v.known = true
	observers := make([]Observer, 0, len(v.observers))
	for _, fn := range v.observers {
		observers = append(observers, fn)
	}
	v.mu.Unlock()

	for _, fn := range observers {
		fn(v.device, next)
	}
}
