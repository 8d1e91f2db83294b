package chat

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwire/clinic-console/pkg/logging"
)

func newTestRouter() *router {
	return &router{logger: logging.NewWithWriter(io.Discard, "error")}
}

func TestRouterRoutesToBucket(t *testing.T) {
	reg := newRegistry()
	r := newTestRouter()

	msg, ok := r.route(reg, []byte(`{"chat_id":"c1","sender_id":"u2","text":"hola","timestamp":"t1"}`))
	require.True(t, ok)
	assert.Equal(t, Message{ChatID: "c1", SenderID: "u2", Text: "hola", Timestamp: "t1"}, msg)

	bucket := reg.messages("c1")
	require.Len(t, bucket, 1)
	assert.Equal(t, msg, bucket[0])
}

func TestRouterDiscardsMalformedFrame(t *testing.T) {
	reg := newRegistry()
	r := newTestRouter()

	_, ok := r.route(reg, []byte(`{"chat_id":`))
	assert.False(t, ok)
	assert.Empty(t, reg.buckets)
}

func TestRouterDiscardsFrameWithoutChatID(t *testing.T) {
	reg := newRegistry()
	r := newTestRouter()

	_, ok := r.route(reg, []byte(`{"sender_id":"u2","text":"lost"}`))
	assert.False(t, ok)
	assert.Empty(t, reg.buckets)
}

func TestRouterInterleavedChatsKeepOrder(t *testing.T) {
	reg := newRegistry()
	r := newTestRouter()

	frames := []string{
		`{"chat_id":"c1","sender_id":"u2","text":"a"}`,
		`{"chat_id":"c2","sender_id":"u3","text":"x"}`,
		`{"chat_id":"c1","sender_id":"u2","text":"b"}`,
		`not json`,
		`{"chat_id":"c2","sender_id":"u3","text":"y"}`,
		`{"chat_id":"c1","sender_id":"u2","text":"c"}`,
	}
	for _, f := range frames {
		r.route(reg, []byte(f))
	}

	c1 := reg.messages("c1")
	require.Len(t, c1, 3)
	assert.Equal(t, "a", c1[0].Text)
	assert.Equal(t, "b", c1[1].Text)
	assert.Equal(t, "c", c1[2].Text)

	c2 := reg.messages("c2")
	require.Len(t, c2, 2)
	assert.Equal(t, "x", c2[0].Text)
	assert.Equal(t, "y", c2[1].Text)
}
