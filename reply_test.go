package nsqpump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendReply(t *testing.T) {
	id := testID(0xAB)

	assert.Equal(t, "NOP\n", string(AppendReply(nil, NoOp())))
	assert.Equal(t, "FIN "+string(id[:])+"\n", string(AppendReply(nil, Finish(id))))
	assert.Equal(t, "REQ "+string(id[:])+"\n", string(AppendReply(nil, Requeue(id))))
	assert.Equal(t, "TOUCH "+string(id[:])+"\n", string(AppendReply(nil, Touch(id))))

	// NOP ignores any id.
	assert.Equal(t, "NOP\n", string(AppendReply(nil, Reply{Kind: ReplyNoOp, ID: id})))
}

func TestReplyFitsHeadroom(t *testing.T) {
	l := len(AppendReply(nil, Touch(testID(0))))
	assert.LessOrEqual(t, l, replyHeadroom)
}

func TestReplyBufferGrowth(t *testing.T) {
	rb := newReplyBuffer()
	require.Equal(t, replyGrowStep, cap(rb.Bytes()))

	var want []byte
	for i := 0; i < 200; i++ {
		r := Reply{Kind: ReplyKind(i % 4), ID: testID(byte(i))}
		before := cap(rb.Bytes())
		rb.encode(r)
		want = AppendReply(want, r)

		after := cap(rb.Bytes())
		if after != before {
			assert.Equal(t, before+replyGrowStep, after)
		}
		require.True(t, bytes.Equal(want, rb.Bytes()), "content corrupted at %d", i)
	}
	assert.Greater(t, cap(rb.Bytes()), replyGrowStep)

	rb.Reset()
	assert.Equal(t, 0, rb.Len())
}

func TestIDRoundTrip(t *testing.T) {
	var id MessageID
	for i := range id {
		id[i] = byte(i * 17)
	}
	m, err := DecodeMessage(EncodeMessageFrame(&Message{ID: id, Body: []byte("x")})[4:])
	require.NoError(t, err)

	out := AppendReply(nil, Finish(m.ID))
	assert.Equal(t, id[:], out[4:4+MsgIDLength])
}

func TestReplyKindString(t *testing.T) {
	assert.Equal(t, "FIN", ReplyFinish.String())
	assert.Equal(t, "UNKNOWN", ReplyKind(9).String())
	assert.Equal(t, "abababababababababababababababab", testID(0xAB).String())
}

func TestAppendReplyUnknownKind(t *testing.T) {
	id := testID(0x11)
	assert.Equal(t, "REQ "+string(id[:])+"\n", string(AppendReply(nil, Reply{Kind: ReplyKind(9), ID: id})))
}
