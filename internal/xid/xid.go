package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random id such as "idem-3f0c…". An empty prefix
// yields the bare uuid.
func New(prefix string) string {
	id := uuid.NewString()
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}

// Valid reports whether id is a uuid, optionally carrying the given prefix.
func Valid(prefix string, id string) bool {
	if prefix != "" {
		trimmed, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			return false
		}
		id = trimmed
	}
	_, err := uuid.Parse(id)
	return err == nil
}
