package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier, namespaced as prefix_<hex> when prefix is set.
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return hex
	}
	return prefix + "_" + hex
}
