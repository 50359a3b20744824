package model

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// generateID creates a lexically sortable ID with the given prefix.
func generateID(prefix string) string {
	return strings.ToLower(prefix) + "_" + ulid.Make().String()
}
