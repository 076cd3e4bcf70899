package server

import (
	"fmt"
	"testing"

	"github.com/gravitas-games/depot/internal/inventory"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{inventory.ErrContainerNotFound, "container_not_found"},
		{inventory.ErrInvalidSlot, "invalid_slot"},
		{inventory.ErrSlotEmpty, "slot_empty"},
		{inventory.ErrInsufficientQuantity, "insufficient_quantity"},
		{inventory.ErrCapacityExceeded, "capacity_exceeded"},
		{inventory.ErrAccessDenied, "access_denied"},
		{inventory.ErrItemUnknown, "item_unknown"},
		{fmt.Errorf("something else"), "request_failed"},
	}
	for _, tc := range cases {
		if got := errorCode(tc.err); got != tc.code {
			t.Errorf("errorCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
		// Wrapped errors map the same as bare sentinels.
		if got := errorCode(fmt.Errorf("context: %w", tc.err)); got != tc.code {
			t.Errorf("wrapped errorCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}

func TestContainerKind(t *testing.T) {
	for id, want := range map[string]string{
		"trunk-42":     "trunk",
		"stash-gang1":  "stash",
		"player-abc":   "player",
		"noprefix":     "",
		"-leadingdash": "",
	} {
		if got := containerKind(id); got != want {
			t.Errorf("containerKind(%q) = %q, want %q", id, got, want)
		}
	}
}
