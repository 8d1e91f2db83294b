package chat

import "github.com/samber/lo"

// registry is the in-memory conversation store: one append-only message
// bucket per chat_id, the inbox metadata list, and the active selection.
// It is plain data owned by the client actor goroutine.
type registry struct {
	chatList           []Conversation
	buckets            map[string][]Message
	activeChatID       string
	activeParticipants []string
}

func newRegistry() *registry {
	return &registry{buckets: make(map[string][]Message)}
}

// append adds a message to the end of its conversation bucket, creating the
// bucket on first sight of the chat_id. Arrival order is preserved; nothing
// is ever reordered or deduplicated.
func (g *registry) append(msg Message) {
	g.buckets[msg.ChatID] = append(g.buckets[msg.ChatID], msg)
}

func (g *registry) hasBucket(chatID string) bool {
	_, ok := g.buckets[chatID]
	return ok
}

// seedHistory populates a bucket from a fetched history. Frames routed while
// the fetch was in flight stay in the bucket, after the history.
func (g *registry) seedHistory(chatID string, history []Message) {
	live := g.buckets[chatID]
	bucket := make([]Message, 0, len(history)+len(live))
	bucket = append(bucket, history...)
	bucket = append(bucket, live...)
	g.buckets[chatID] = bucket
}

func (g *registry) messages(chatID string) []Message {
	bucket := g.buckets[chatID]
	out := make([]Message, len(bucket))
	copy(out, bucket)
	return out
}

func (g *registry) setActive(conv Conversation) {
	g.activeChatID = conv.ChatID
	g.activeParticipants = conv.Participants
}

// replaceChatList swaps the inbox list wholesale with the fetched result.
func (g *registry) replaceChatList(convs []Conversation) {
	g.chatList = convs
}

func (g *registry) listed(chatID string) bool {
	return lo.SomeBy(g.chatList, func(c Conversation) bool {
		return c.ChatID == chatID
	})
}

// prependChat puts a newly opened conversation at the front of the inbox.
func (g *registry) prependChat(conv Conversation) {
	g.chatList = append([]Conversation{conv}, g.chatList...)
}

// reset clears all registry state on explicit disconnect.
func (g *registry) reset() {
	g.chatList = nil
	g.buckets = make(map[string][]Message)
	g.activeChatID = ""
	g.activeParticipants = nil
}
