// Package chat implements the realtime messaging core of the clinic
// console: one persistent websocket with automatic reconnection, an
// in-memory multi-conversation store, and a small synchronous-looking API
// on top (Connect, FetchChatList, SelectChat, OpenChatWithUser,
// SendMessage, Disconnect).
//
// All mutable state is owned by a single actor goroutine. Public methods,
// transport events, timer fires and directory-call completions are all
// delivered to that goroutine as inbox events, so nothing in the package
// takes a lock on core state.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinwire/clinic-console/internal/observability/metrics"
	"github.com/clinwire/clinic-console/pkg/logging"
)

// Directory is the external REST collaborator supplying conversation
// metadata and history.
type Directory interface {
	CreateOrGetChat(ctx context.Context, recipientID string) (Conversation, error)
	ListChats(ctx context.Context) ([]Conversation, error)
	ChatHistory(ctx context.Context, chatID string) ([]Message, error)
}

// Session supplies the credentials of the signed-in user.
type Session interface {
	Token() string
	UserID() string
}

var (
	// ErrNoToken is returned by Connect when the session has no token.
	ErrNoToken = errors.New("chat: no session token")
	// ErrInvalidConversation is returned by SelectChat for a descriptor
	// without a chat id.
	ErrInvalidConversation = errors.New("chat: invalid conversation descriptor")
	// ErrClosed is returned once the client has been shut down.
	ErrClosed = errors.New("chat: client closed")
)

const defaultReconnectDelay = 5 * time.Second

// Options configures a Client.
type Options struct {
	// WSURL is the message endpoint, e.g. "ws://localhost:8083/ws".
	WSURL string
	// ReconnectDelay is the fixed wait before a reconnect attempt.
	// Defaults to 5s.
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *logging.Logger
	Metrics        *metrics.ChatMetrics
	// OnMessage, when set, is invoked from the actor goroutine for every
	// routed inbound message. It must not block and must not call back
	// into the Client.
	OnMessage func(Message)
}

// Snapshot is a point-in-time copy of the observable client state.
type Snapshot struct {
	State              ConnState
	ChatList           []Conversation
	ActiveChatID       string
	ActiveParticipants []string
}

// Client is the realtime messaging client. Construct with New, tear down
// with Close.
type Client struct {
	directory Directory
	session   Session
	logger    *logging.Logger
	onMessage func(Message)

	inbox chan event
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	// Owned by the actor goroutine.
	conn     *connManager
	registry *registry
	router   *router
	composer *composer
	metrics  *metrics.ChatMetrics
	// epoch invalidates directory completions from before a teardown.
	epoch int
	// pendingHistory dedupes concurrent history fetches per chat.
	pendingHistory map[string]struct{}
}

// New creates a client and starts its actor goroutine.
func New(directory Directory, session Session, opts Options) *Client {
	if directory == nil {
		panic("chat: directory collaborator cannot be nil")
	}
	if session == nil {
		panic("chat: session cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	c := &Client{
		directory:      directory,
		session:        session,
		logger:         logger,
		onMessage:      opts.OnMessage,
		inbox:          make(chan event, 32),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
		registry:       newRegistry(),
		metrics:        opts.Metrics,
		pendingHistory: make(map[string]struct{}),
	}
	c.conn = &connManager{
		wsURL:   opts.WSURL,
		delay:   delay,
		dialer:  dialer,
		post:    c.post,
		logger:  logger,
		metrics: opts.Metrics,
	}
	c.router = &router{logger: logger, metrics: opts.Metrics}
	c.composer = &composer{session: session, logger: logger, metrics: opts.Metrics}

	go c.run()
	return c
}

// post delivers an event to the actor loop. Returns false once the client
// is shutting down.
func (c *Client) post(ev event) bool {
	select {
	case c.inbox <- ev:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.teardown()
			return
		case ev := <-c.inbox:
			c.handle(ev)
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev := ev.(type) {
	case connectCmd:
		ev.reply <- c.handleConnect()
	case disconnectCmd:
		c.teardown()
		close(ev.reply)
	case fetchListCmd:
		c.startListFetch()
		close(ev.reply)
	case selectChatCmd:
		ev.reply <- c.handleSelect(ev.conv)
	case openChatCmd:
		c.startCreateOrGet(ev.recipientID)
		close(ev.reply)
	case sendCmd:
		ev.reply <- c.handleSend(ev.text)
	case snapshotReq:
		ev.reply <- c.snapshot()
	case messagesReq:
		chatID := ev.chatID
		if ev.active {
			chatID = c.registry.activeChatID
		}
		ev.reply <- c.registry.messages(chatID)

	case dialDone:
		c.conn.handleDialDone(ev)
	case inboundFrame:
		if ev.gen != c.conn.gen {
			return
		}
		if msg, ok := c.router.route(c.registry, ev.data); ok && c.onMessage != nil {
			c.onMessage(msg)
		}
	case connClosed:
		c.conn.handleClosed(ev)
	case retryFired:
		c.conn.handleRetryFired(ev)

	case listFetched:
		c.handleListFetched(ev)
	case historyFetched:
		c.handleHistoryFetched(ev)
	case chatCreated:
		c.handleChatCreated(ev)
	}
}

func (c *Client) handleConnect() error {
	token := c.session.Token()
	if token == "" {
		c.logger.Error("chat: no session token, connection not attempted")
		return ErrNoToken
	}
	c.conn.connect(token)
	return nil
}

// teardown closes the transport and clears all registry state. In-flight
// directory calls are not cancelled; bumping the epoch makes their
// completions act on nothing.
func (c *Client) teardown() {
	c.conn.disconnect()
	c.epoch++
	c.registry.reset()
	c.pendingHistory = make(map[string]struct{})
}

func (c *Client) handleSelect(conv Conversation) error {
	if conv.ChatID == "" {
		c.logger.Error("chat: selectChat with invalid conversation descriptor")
		return ErrInvalidConversation
	}
	c.registry.setActive(conv)
	if c.registry.hasBucket(conv.ChatID) {
		return nil
	}
	if _, pending := c.pendingHistory[conv.ChatID]; pending {
		return nil
	}
	c.startHistoryFetch(conv.ChatID)
	return nil
}

func (c *Client) handleSend(text string) error {
	frame, err := c.composer.compose(c.registry, text)
	if err != nil {
		return err
	}
	if err := c.conn.send(frame); err != nil {
		c.metrics.ObserveOutbound("failed")
		return err
	}
	c.metrics.ObserveOutbound("sent")
	return nil
}

func (c *Client) startListFetch() {
	epoch := c.epoch
	go func() {
		convs, err := c.directory.ListChats(context.Background())
		c.post(listFetched{epoch: epoch, convs: convs, err: err})
	}()
}

func (c *Client) handleListFetched(ev listFetched) {
	if ev.epoch != c.epoch {
		return
	}
	if ev.err != nil {
		// Local list keeps its prior value; no retry.
		c.logger.Error("chat: failed to load chat list", "error", ev.err)
		return
	}
	c.registry.replaceChatList(ev.convs)
}

func (c *Client) startHistoryFetch(chatID string) {
	c.pendingHistory[chatID] = struct{}{}
	epoch := c.epoch
	go func() {
		msgs, err := c.directory.ChatHistory(context.Background(), chatID)
		c.post(historyFetched{epoch: epoch, chatID: chatID, msgs: msgs, err: err})
	}()
}

func (c *Client) handleHistoryFetched(ev historyFetched) {
	if ev.epoch != c.epoch {
		return
	}
	delete(c.pendingHistory, ev.chatID)
	if ev.err != nil {
		c.logger.Error("chat: failed to load chat history", "chat_id", ev.chatID, "error", ev.err)
		return
	}
	c.registry.seedHistory(ev.chatID, ev.msgs)
}

func (c *Client) startCreateOrGet(recipientID string) {
	epoch := c.epoch
	go func() {
		conv, err := c.directory.CreateOrGetChat(context.Background(), recipientID)
		c.post(chatCreated{epoch: epoch, conv: conv, err: err})
	}()
}

func (c *Client) handleChatCreated(ev chatCreated) {
	if ev.epoch != c.epoch {
		return
	}
	if ev.err != nil {
		c.logger.Error("chat: failed to create or get chat", "error", ev.err)
		return
	}
	if err := c.handleSelect(ev.conv); err != nil {
		return
	}
	if !c.registry.listed(ev.conv.ChatID) {
		c.registry.prependChat(ev.conv)
	}
}

func (c *Client) snapshot() Snapshot {
	list := make([]Conversation, len(c.registry.chatList))
	copy(list, c.registry.chatList)
	participants := make([]string, len(c.registry.activeParticipants))
	copy(participants, c.registry.activeParticipants)
	return Snapshot{
		State:              c.conn.state,
		ChatList:           list,
		ActiveChatID:       c.registry.activeChatID,
		ActiveParticipants: participants,
	}
}

// Connect establishes the websocket using the session token. Idempotent
// while a connection is open or being established.
func (c *Client) Connect() error {
	reply := make(chan error, 1)
	if !c.post(connectCmd{reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// Disconnect closes the transport with the manual close code, cancels any
// pending reconnect and clears all conversation state. Idempotent.
func (c *Client) Disconnect() {
	reply := make(chan struct{})
	if !c.post(disconnectCmd{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-c.done:
	}
}

// FetchChatList starts a refresh of the inbox list from the directory. On
// success the local list is replaced wholesale; failures are logged and
// leave it unchanged.
func (c *Client) FetchChatList() error {
	reply := make(chan struct{})
	if !c.post(fetchListCmd{reply: reply}) {
		return ErrClosed
	}
	select {
	case <-reply:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// SelectChat makes conv the active conversation. History is fetched only
// if no bucket is cached for it yet; repeated selection is idempotent.
func (c *Client) SelectChat(conv Conversation) error {
	reply := make(chan error, 1)
	if !c.post(selectChatCmd{conv: conv, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// OpenChatWithUser creates or fetches the 1:1 conversation with the given
// user via the directory, selects it, and prepends it to the inbox list if
// it was not already listed.
func (c *Client) OpenChatWithUser(recipientID string) error {
	reply := make(chan struct{})
	if !c.post(openChatCmd{recipientID: recipientID, reply: reply}) {
		return ErrClosed
	}
	select {
	case <-reply:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// SendMessage sends text to the active conversation. The local bucket is
// not updated; the message appears only when the server echoes it back.
func (c *Client) SendMessage(text string) error {
	reply := make(chan error, 1)
	if !c.post(sendCmd{text: text, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// Snapshot returns a copy of the observable state for the UI layer.
func (c *Client) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !c.post(snapshotReq{reply: reply}) {
		return Snapshot{State: StateClosed}
	}
	select {
	case snap := <-reply:
		return snap
	case <-c.done:
		return Snapshot{State: StateClosed}
	}
}

// Messages returns a copy of the bucket for chatID.
func (c *Client) Messages(chatID string) []Message {
	return c.messages(messagesReq{chatID: chatID})
}

// ActiveMessages returns a copy of the active conversation's bucket.
func (c *Client) ActiveMessages() []Message {
	return c.messages(messagesReq{active: true})
}

func (c *Client) messages(req messagesReq) []Message {
	req.reply = make(chan []Message, 1)
	if !c.post(req) {
		return nil
	}
	select {
	case msgs := <-req.reply:
		return msgs
	case <-c.done:
		return nil
	}
}

// Close tears down the client: disconnects, clears state and stops the
// actor goroutine. The client cannot be reused afterwards.
func (c *Client) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}
