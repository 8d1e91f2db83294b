package chat

import (
	"errors"

	"github.com/samber/lo"

	"github.com/clinwire/clinic-console/internal/observability/metrics"
	"github.com/clinwire/clinic-console/pkg/logging"
)

// ErrNoActiveChat is returned by SendMessage when no conversation is
// selected or the current user cannot be resolved.
var ErrNoActiveChat = errors.New("chat: no active conversation or signed-in user")

// composer builds outbound frames for the active conversation.
type composer struct {
	session Session
	logger  *logging.Logger
	metrics *metrics.ChatMetrics
}

// compose validates the send preconditions and builds the outbound frame:
// the text, the active chat id, and the participants minus the sender. The
// message is not appended locally; it shows up in the bucket only if the
// server echoes it back over the inbound channel.
func (c *composer) compose(reg *registry, text string) (OutboundFrame, error) {
	userID := c.session.UserID()
	if reg.activeChatID == "" || userID == "" {
		c.logger.Error("chat: sendMessage without active chat or user",
			"active_chat_id", reg.activeChatID,
			"has_user", userID != "",
		)
		c.metrics.ObserveOutbound("rejected")
		return OutboundFrame{}, ErrNoActiveChat
	}

	recipients := lo.Filter(reg.activeParticipants, func(id string, _ int) bool {
		return id != userID
	})
	if len(recipients) == 0 {
		c.logger.Warn("chat: sending to a conversation with no other participants",
			"chat_id", reg.activeChatID)
	}

	return OutboundFrame{
		Text:         text,
		ChatID:       reg.activeChatID,
		RecipientIDs: recipients,
	}, nil
}
