package entries

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("config entry not found")
	ErrDuplicate = errors.New("config entry already exists")
)

// Entry is a persisted integration configuration. Data is owned by the
// integration identified by Domain; the store treats it as opaque JSON.
type Entry struct {
	ID        string          `json:"entry_id"`
	Domain    string          `json:"domain"`
	Title     string          `json:"title"`
	UniqueID  string          `json:"unique_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// DecodeData unmarshals the entry payload into dest.
func (e Entry) DecodeData(dest any) error {
	return json.Unmarshal(e.Data, dest)
}
