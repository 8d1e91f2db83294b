package chat

import (
	"encoding/json"

	"github.com/clinwire/clinic-console/internal/observability/metrics"
	"github.com/clinwire/clinic-console/pkg/logging"
)

// router decodes inbound payloads and partitions them into per-conversation
// buckets. This is the only place conversations can appear purely from the
// network side, independent of any directory fetch.
type router struct {
	logger  *logging.Logger
	metrics *metrics.ChatMetrics
}

// route appends one decoded message to its bucket and returns it. Malformed
// payloads, including those without a chat_id, are logged and discarded;
// they never affect the connection.
func (r *router) route(reg *registry, data []byte) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Error("chat: discarding malformed inbound frame", "error", err)
		r.metrics.ObserveInbound("malformed")
		return Message{}, false
	}
	if msg.ChatID == "" {
		r.logger.Error("chat: discarding inbound frame without chat_id")
		r.metrics.ObserveInbound("malformed")
		return Message{}, false
	}
	reg.append(msg)
	r.metrics.ObserveInbound("ok")
	return msg, true
}
