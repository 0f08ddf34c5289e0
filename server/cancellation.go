package server

import (
	"context"
	"encoding/json"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

// cancel handles the notifications/cancelled notification by cancelling the
// referenced in-flight request. An already-dispatched upstream call may still
// complete; its result is then discarded.
func (h *Handler) cancel(_ context.Context, notification *jsonrpc.Notification) {
	var params schema.CancelledNotificationParams
	if err := json.Unmarshal(notification.Params, &params); err != nil {
		return
	}
	if params.RequestId == 0 {
		return
	}
	h.cancelOperation(int(params.RequestId))
}
