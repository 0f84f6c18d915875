package switchbot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVacuum = Device{ID: "C271111EC0AB", Name: "Kitchen", Type: "K10+"}

func TestStatusTable(t *testing.T) {
	want := map[string]State{
		"StandBy":          StateIdle,
		"ChargeDone":       StateIdle,
		"Dormant":          StateIdle,
		"Clearing":         StateCleaning,
		"Paused":           StatePaused,
		"GotoChargeBase":   StateReturning,
		"InDustCollecting": StateReturning,
		"Charging":         StateDocked,
		"InTrouble":        StateError,
		"":                 StateError,
		"standby":          StateError,
		"SomethingNew":     StateError,
	}
	for status, state := range want {
		v := NewVacuum(&fakeAPI{}, testVacuum)
		v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr(status), Battery: intPtr(80)})

		got, ok := v.State()
		require.True(t, ok, status)
		assert.Equal(t, state, got.State, status)
		assert.Equal(t, 80, *got.Battery, status)
	}
}

func TestEmptyReportsAreIgnored(t *testing.T) {
	v := NewVacuum(&fakeAPI{}, testVacuum)
	calls := 0
	v.Subscribe(func(Device, VacuumState) { calls++ })

	v.OnStatusUpdate(nil)
	v.OnStatusUpdate(&Snapshot{})
	_, ok := v.State()
	assert.False(t, ok)

	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("Charging"), Battery: intPtr(55)})
	v.OnStatusUpdate(nil)
	v.OnStatusUpdate(&Snapshot{Battery: intPtr(10)})

	got, _ := v.State()
	assert.Equal(t, StateDocked, got.State)
	assert.Equal(t, 55, *got.Battery)
	assert.Equal(t, 1, calls)
}

func TestBatteryMayBeAbsent(t *testing.T) {
	v := NewVacuum(&fakeAPI{}, testVacuum)
	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("StandBy"), Battery: intPtr(40)})
	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("Clearing")})

	got, _ := v.State()
	assert.Equal(t, StateCleaning, got.State)
	assert.Nil(t, got.Battery)
}

func TestCommandsSetOptimisticState(t *testing.T) {
	tests := []struct {
		send func(*Vacuum, context.Context) error
		cmd  Command
		want State
	}{
		{(*Vacuum).Start, CommandStart, StateCleaning},
		{(*Vacuum).ReturnToBase, CommandDock, StateReturning},
		{(*Vacuum).Stop, CommandStop, StatePaused},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			api := &fakeAPI{}
			v := NewVacuum(api, testVacuum)
			v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("Charging"), Battery: intPtr(90)})

			require.NoError(t, tt.send(v, context.Background()))

			got, _ := v.State()
			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, 90, *got.Battery)
			assert.Equal(t, []Command{tt.cmd}, api.commands)
		})
	}
}

func TestNextReportOverwritesOptimisticState(t *testing.T) {
	v := NewVacuum(&fakeAPI{}, testVacuum)
	require.NoError(t, v.Start(context.Background()))
	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("InTrouble")})

	got, _ := v.State()
	assert.Equal(t, StateError, got.State)
}

func TestCommandFailureLeavesState(t *testing.T) {
	api := &fakeAPI{commandErr: ErrCannotConnect}
	v := NewVacuum(api, testVacuum)
	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("Charging")})

	err := v.Start(context.Background())
	assert.True(t, errors.Is(err, ErrCannotConnect))

	got, _ := v.State()
	assert.Equal(t, StateDocked, got.State)
}

func TestUnsupportedCommand(t *testing.T) {
	api := &fakeAPI{}
	v := NewVacuum(api, testVacuum)
	assert.Error(t, v.SendCommand(context.Background(), Command("turnOn")))
	assert.Empty(t, api.commands)
}

func TestObserversNotifiedOncePerUpdate(t *testing.T) {
	v := NewVacuum(&fakeAPI{}, testVacuum)
	var seen []State
	cancel := v.Subscribe(func(d Device, s VacuumState) {
		assert.Equal(t, testVacuum.ID, d.ID)
		current, _ := v.State()
		assert.Equal(t, s.State, current.State)
		seen = append(seen, s.State)
	})

	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("Clearing")})
	require.NoError(t, v.Stop(context.Background()))
	cancel()
	v.OnStatusUpdate(&Snapshot{WorkingStatus: strPtr("StandBy")})

	assert.Equal(t, []State{StateCleaning, StatePaused}, seen)
}

func TestSupportedFeatures(t *testing.T) {
	features := NewVacuum(&fakeAPI{}, testVacuum).SupportedFeatures()
	for _, f := range []Feature{FeatureStart, FeatureStop, FeatureReturnHome, FeatureState, FeatureBattery, FeatureStatus} {
		assert.NotZero(t, features&f)
	}
}
