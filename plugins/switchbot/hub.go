package switchbot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/entries"
)

// Hub owns the vacuums and coordinators of every loaded entry.
type Hub struct {
	newAPI       APIFactory
	pollInterval time.Duration
	logger       *zap.Logger

	mu           sync.RWMutex
	vacuums      map[string]*Vacuum
	coordinators map[string]*Coordinator
	deviceEntry  map[string]string
	webhooks     map[string]string
	loaded       map[string]bool
	observers    []Observer

	runCtx context.Context
	wg     sync.WaitGroup
}

func NewHub(newAPI APIFactory, pollInterval time.Duration, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		newAPI:       newAPI,
		pollInterval: pollInterval,
		logger:       logger.Named("switchbot"),
		vacuums:      make(map[string]*Vacuum),
		coordinators: make(map[string]*Coordinator),
		deviceEntry:  make(map[string]string),
		webhooks:     make(map[string]string),
		loaded:       make(map[string]bool),
	}
}

// Observe subscribes fn to current and future vacuums.
func (h *Hub) Observe(fn Observer) {
	h.mu.Lock()
	h.observers = append(h.observers, fn)
	vacuums := make([]*Vacuum, 0, len(h.vacuums))
	for _, v := range h.vacuums {
		vacuums = append(vacuums, v)
	}
	h.mu.Unlock()

	for _, v := range vacuums {
		v.Subscribe(fn)
	}
}

// Load discovers the vacuums of entry. Loading an entry twice is a no-op.
func (h *Hub) Load(ctx context.Context, entry entries.Entry) error {
	data, err := DecodeEntry(entry)
	if err != nil {
		return err
	}
	h.mu.RLock()
	done := h.loaded[entry.ID]
	h.mu.RUnlock()
	if done {
		return nil
	}

	api := h.newAPI(data.APIToken, data.APIKey)
	devices, err := api.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices for entry %s: %w", entry.ID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded[entry.ID] {
		return nil
	}
	h.loaded[entry.ID] = true
	if data.HasWebhook() {
		h.webhooks[*data.WebhookID] = entry.ID
	}

	for _, device := range devices {
		if !device.IsVacuum() {
			continue
		}
		key := deviceKey(device.ID)
		vacuum := NewVacuum(api, device)
		for _, fn := range h.observers {
			vacuum.Subscribe(fn)
		}
		coord := NewCoordinator(api, device, h.logger)
		coord.Listen(vacuum.OnStatusUpdate)

		h.vacuums[key] = vacuum
		h.coordinators[key] = coord
		h.deviceEntry[key] = entry.ID
		if h.runCtx != nil && h.runCtx.Err() == nil {
			h.startLocked(coord)
		}
		h.logger.Info("switchbot vacuum added",
			zap.String("entry_id", entry.ID),
			zap.String("device_id", device.ID),
			zap.String("device_name", device.Name),
			zap.String("device_type", device.Type),
		)
	}
	return nil
}

// Run polls every device until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.runCtx = ctx
	for _, coord := range h.coordinators {
		h.startLocked(coord)
	}
	h.mu.Unlock()

	<-ctx.Done()
	h.wg.Wait()
}

func (h *Hub) startLocked(coord *Coordinator) {
	ctx, interval := h.runCtx, h.pollInterval
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		coord.Run(ctx, interval)
	}()
}

// Vacuums returns the known vacuums ordered by name.
func (h *Hub) Vacuums() []*Vacuum {
	h.mu.RLock()
	out := make([]*Vacuum, 0, len(h.vacuums))
	for _, v := range h.vacuums {
		out = append(out, v)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Device(), out[j].Device()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out
}

func (h *Hub) Vacuum(deviceID string) (*Vacuum, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.vacuums[deviceKey(deviceID)]
	return v, ok
}

func (h *Hub) Coordinator(deviceID string) (*Coordinator, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.coordinators[deviceKey(deviceID)]
	return c, ok
}

// HandleWebhook routes a pushed report. It returns false when webhookID is
// not registered; reports for devices outside the entry are dropped.
func (h *Hub) HandleWebhook(webhookID string, snap *Snapshot) bool {
	h.mu.RLock()
	entryID, ok := h.webhooks[webhookID]
	var coord *Coordinator
	if ok && snap != nil {
		key := deviceKey(snap.DeviceMac)
		if key == "" {
			key = deviceKey(snap.DeviceID)
		}
		if h.deviceEntry[key] == entryID {
			coord = h.coordinators[key]
		}
	}
	h.mu.RUnlock()

	if !ok {
		return false
	}
	if coord == nil {
		h.logger.Debug("switchbot webhook for unknown device", zap.String("webhook_id", webhookID))
		return true
	}
	coord.Push(snap)
	return true
}

func deviceKey(id string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(id), ":", ""))
}
