package server

import (
	"context"
)

type activeContext struct {
	context.Context
	context.CancelFunc
}

// cancelOperation cancels and forgets the in-flight request with the given id.
func (h *Handler) cancelOperation(id int) {
	if active, ok := h.activeContexts.Get(id); ok {
		active.CancelFunc()
		h.activeContexts.Delete(id)
	}
}

// cancelAll cancels every in-flight request of this session; other sessions'
// work is untouched.
func (h *Handler) cancelAll() {
	var ids []int
	h.activeContexts.Range(func(id int, _ *activeContext) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		h.cancelOperation(id)
	}
}
