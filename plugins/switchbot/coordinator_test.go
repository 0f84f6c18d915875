package switchbot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorRefreshFeedsListeners(t *testing.T) {
	api := hubAPI()
	coord := NewCoordinator(api, Device{ID: "D1"}, nil)
	v := NewVacuum(api, Device{ID: "D1"})
	coord.Listen(v.OnStatusUpdate)

	assert.False(t, coord.LastUpdateSuccess())
	require.NoError(t, coord.Refresh(context.Background()))
	assert.True(t, coord.LastUpdateSuccess())

	state, _ := v.State()
	assert.Equal(t, StateCleaning, state.State)
	assert.Equal(t, 30, *coord.Data().Battery)
}

func TestCoordinatorFailedPollKeepsData(t *testing.T) {
	api := hubAPI()
	coord := NewCoordinator(api, Device{ID: "D1"}, nil)
	require.NoError(t, coord.Refresh(context.Background()))

	api.statusErr = ErrCannotConnect
	assert.ErrorIs(t, coord.Refresh(context.Background()), ErrCannotConnect)
	assert.False(t, coord.LastUpdateSuccess())
	require.NotNil(t, coord.Data())
	assert.Equal(t, "Clearing", *coord.Data().WorkingStatus)
}

func TestCoordinatorPushWithoutStatus(t *testing.T) {
	api := hubAPI()
	coord := NewCoordinator(api, Device{ID: "D1"}, nil)
	v := NewVacuum(api, Device{ID: "D1"})
	coord.Listen(v.OnStatusUpdate)

	coord.Push(&Snapshot{WorkingStatus: strPtr("Charging")})
	coord.Push(&Snapshot{OnlineStatus: "offline"})

	state, _ := v.State()
	assert.Equal(t, StateDocked, state.State)
}

func TestCoordinatorDeliversInDataOrder(t *testing.T) {
	coord := NewCoordinator(hubAPI(), Device{ID: "D1"}, nil)
	v := NewVacuum(hubAPI(), Device{ID: "D1"})
	coord.Listen(v.OnStatusUpdate)

	var (
		mu   sync.Mutex
		last *Snapshot
	)
	coord.Listen(func(snap *Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})

	statuses := []string{"Clearing", "Paused", "Dormant", "GotoChargeBase", "ChargeDone"}
	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord.Push(&Snapshot{DeviceID: "D1", WorkingStatus: strPtr(statuses[i%len(statuses)])})
		}()
	}
	wg.Wait()

	assert.Same(t, coord.Data(), last)
	state, ok := v.State()
	require.True(t, ok)
	assert.Equal(t, StateForStatus(*coord.Data().WorkingStatus), state.State)
}
