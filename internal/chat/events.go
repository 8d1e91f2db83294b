package chat

import "github.com/gorilla/websocket"

// Every stimulus the client reacts to is an event posted to the actor
// inbox: public API commands, transport lifecycle, directory completions
// and the reconnect timer. The loop processes them one at a time, which is
// the single-writer invariant the whole package leans on.
type event interface{}

// Commands posted by the public API. The reply channel is signalled once
// the loop has processed the command itself, never for in-flight network
// activity started by it.
type (
	connectCmd    struct{ reply chan error }
	disconnectCmd struct{ reply chan struct{} }
	fetchListCmd  struct{ reply chan struct{} }
	selectChatCmd struct {
		conv  Conversation
		reply chan error
	}
	openChatCmd struct {
		recipientID string
		reply       chan struct{}
	}
	sendCmd struct {
		text  string
		reply chan error
	}
	snapshotReq struct{ reply chan Snapshot }
	messagesReq struct {
		chatID string
		active bool
		reply  chan []Message
	}
)

// Transport events. gen ties each event to the connection that produced it.
type (
	dialDone struct {
		gen  int
		conn *websocket.Conn
		err  error
	}
	inboundFrame struct {
		gen  int
		data []byte
	}
	connClosed struct {
		gen  int
		code int
	}
	retryFired struct {
		gen   int
		token string
	}
)

// Directory call completions. epoch guards against completions resolving
// after the registry was torn down by a disconnect.
type (
	listFetched struct {
		epoch int
		convs []Conversation
		err   error
	}
	historyFetched struct {
		epoch  int
		chatID string
		msgs   []Message
		err    error
	}
	chatCreated struct {
		epoch int
		conv  Conversation
		err   error
	}
)
