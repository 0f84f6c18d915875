package switchbot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/rate"
)

// StatusFetcher reads the current status of a device.
type StatusFetcher interface {
	DeviceStatus(ctx context.Context, deviceID string) (Snapshot, error)
}

// Coordinator feeds status reports of one device to its listeners, from
// polling and from webhook pushes.
type Coordinator struct {
	api    StatusFetcher
	device Device
	logger *zap.Logger

	// deliver orders reports so listeners see them in the order data changed.
	deliver sync.Mutex

	mu        sync.Mutex
	data      *Snapshot
	lastErr   error
	updated   time.Time
	listeners []func(*Snapshot)
}

func NewCoordinator(api StatusFetcher, device Device, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		api:    api,
		device: device,
		logger: logger.With(zap.String("device_id", device.ID)),
	}
}

// Listen registers fn for every accepted report.
func (c *Coordinator) Listen(fn func(*Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Refresh polls the device once. Failures leave the last data in place.
func (c *Coordinator) Refresh(ctx context.Context) error {
	snap, err := c.api.DeviceStatus(rate.Background(ctx), c.device.ID)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn("switchbot status poll failed", zap.Error(err))
		return err
	}
	c.Push(&snap)
	return nil
}

// Push delivers a report received out of band.
func (c *Coordinator) Push(snap *Snapshot) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	c.data = snap
	c.lastErr = nil
	c.updated = time.Now()
	listeners := append([]func(*Snapshot){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// Run polls every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	_ = c.Refresh(ctx)
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Data returns the last accepted report, or nil.
func (c *Coordinator) Data() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// LastUpdateSuccess reports whether the latest poll succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr == nil && !c.updated.IsZero()
}
