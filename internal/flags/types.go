package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// PauseAll halts every engine operation while set.
const PauseAll = "pause.all"

// Flag is an operator switch stored in Redis.
type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PauseKey returns the switch that halts one operation kind.
func PauseKey(kind string) string {
	return "pause." + kind
}
