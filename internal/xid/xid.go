package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "sale-3f0c...".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Valid reports whether raw looks like an id produced by New or a bare UUID.
func Valid(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 80 {
		return false
	}
	if _, err := uuid.Parse(raw); err == nil {
		return true
	}
	idx := strings.LastIndex(raw, "-")
	if idx < 1 {
		return false
	}
	_, err := uuid.Parse(raw[idx+1:])
	return err == nil
}
