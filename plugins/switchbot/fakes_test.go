package switchbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshp123/gohome-switchbot/internal/entries"
)

type fakeAPI struct {
	mu          sync.Mutex
	devices     []Device
	listErr     error
	listCalls   int
	status      map[string]Snapshot
	statusErr   error
	commandErr  error
	webhookErr  error
	commands    []Command
	webhookURLs []string
	deletedURLs []string
}

func (f *fakeAPI) ListDevices(context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeAPI) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeAPI) listDevicesCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) DeviceStatus(_ context.Context, id string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return Snapshot{}, f.statusErr
	}
	return f.status[id], nil
}

func (f *fakeAPI) SendCommand(_ context.Context, _ string, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commandErr != nil {
		return f.commandErr
	}
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeAPI) SetupWebhook(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.webhookErr != nil {
		return f.webhookErr
	}
	f.webhookURLs = append(f.webhookURLs, url)
	return nil
}

func (f *fakeAPI) DeleteWebhook(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedURLs = append(f.deletedURLs, url)
	return nil
}

func (f *fakeAPI) factory() APIFactory {
	return func(string, string) API { return f }
}

type memStore struct {
	mu      sync.Mutex
	entries []entries.Entry
	next    int
}

func (s *memStore) Exists(_ context.Context, domain, uniqueID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Create(_ context.Context, e entries.Entry) (entries.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.Domain == e.Domain && existing.UniqueID == e.UniqueID {
			return entries.Entry{}, entries.ErrDuplicate
		}
	}
	s.next++
	e.ID = fmt.Sprintf("entry-%d", s.next)
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *memStore) List(_ context.Context, domain string) ([]entries.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entries.Entry
	for _, e := range s.entries {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (entries.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return entries.Entry{}, entries.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return entries.ErrNotFound
}

type fakeRelay struct {
	available bool
	url       string
	err       error
	created   []string
	released  []string
}

func (r *fakeRelay) Available(context.Context) bool {
	return r.available
}

func (r *fakeRelay) CreateCloudhook(_ context.Context, id string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.created = append(r.created, id)
	return r.url + id, nil
}

func (r *fakeRelay) DeleteCloudhook(_ context.Context, id string) error {
	r.released = append(r.released, id)
	return nil
}

func strPtr(s string) *string {
	return &s
}

func intPtr(n int) *int {
	return &n
}
