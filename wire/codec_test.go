package wire

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesExactLengthHeader(t *testing.T) {
	frame, err := Encode(NewNotification("notifications/initialized", struct{}{}))
	require.NoError(t, err)

	body := `{"jsonrpc":"2.0","method":"notifications/initialized","params":{}}`
	assert.Equal(t, fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body), string(frame))
}

func TestRoundTripWithTrailingSecondFrame(t *testing.T) {
	first, err := Encode(NewRequest(1, "tools/call", map[string]any{"name": "zkputer_get_receipt"}))
	require.NoError(t, err)
	second, err := Encode(NewRequest(2, "ping", struct{}{}))
	require.NoError(t, err)

	// Deliver frame one plus a partial prefix of frame two in a single read.
	cut := len(second) / 2
	dec := &Decoder{}
	msgs, decErr := dec.Feed(append(append([]byte{}, first...), second[:cut]...))
	require.NoError(t, decErr)
	require.Len(t, msgs, 1)
	assert.Equal(t, "tools/call", msgs[0].Method)
	require.NotNil(t, msgs[0].ID)
	assert.Equal(t, uint64(1), *msgs[0].ID)
	assert.Equal(t, cut, dec.Buffered())

	msgs, decErr = dec.Feed(second[cut:])
	require.NoError(t, decErr)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].Method)
	assert.Zero(t, dec.Buffered())
}

func TestDecodeSplitArbitrarily(t *testing.T) {
	frame, err := Encode(NewRequest(7, "tools/list", struct{}{}))
	require.NoError(t, err)

	// Byte-by-byte delivery must decode identically to one-shot delivery,
	// including a header split mid-line.
	dec := &Decoder{}
	var got []Message
	for _, b := range frame {
		msgs, decErr := dec.Feed([]byte{b})
		require.NoError(t, decErr)
		got = append(got, msgs...)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "tools/list", got[0].Method)
	require.NotNil(t, got[0].ID)
	assert.Equal(t, uint64(7), *got[0].ID)
}

func TestDecodeMultipleFramesInOneRead(t *testing.T) {
	var stream []byte
	for i := 1; i <= 3; i++ {
		frame, err := Encode(NewRequest(uint64(i), "ping", struct{}{}))
		require.NoError(t, err)
		stream = append(stream, frame...)
	}

	dec := &Decoder{}
	msgs, err := dec.Feed(stream)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		require.NotNil(t, msg.ID)
		assert.Equal(t, uint64(i+1), *msg.ID)
	}
}

func TestDecodeResponseFields(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":4,"result":{"ok":true}}`
	dec := &Decoder{}
	msgs, err := dec.Feed([]byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(raw), raw)))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.True(t, msg.IsResponse())
	assert.JSONEq(t, `{"ok":true}`, string(msg.Result))
}

func TestMalformedHeaderDiscardsWholeBuffer(t *testing.T) {
	valid, err := Encode(NewRequest(1, "ping", struct{}{}))
	require.NoError(t, err)

	dec := &Decoder{}
	msgs, decErr := dec.Feed([]byte("Content-Length: nope\r\n\r\n" + string(valid)))
	assert.ErrorIs(t, decErr, ErrMalformedHeader)
	assert.Empty(t, msgs)
	// Everything buffered, including the valid frame behind the bad header,
	// is gone: the stream is considered desynchronized.
	assert.Zero(t, dec.Buffered())

	// A well-formed frame arriving afterwards resumes decoding.
	msgs, decErr = dec.Feed(valid)
	require.NoError(t, decErr)
	require.Len(t, msgs, 1)
}

func TestMissingContentLengthIsMalformed(t *testing.T) {
	dec := &Decoder{}
	_, err := dec.Feed([]byte("X-Other: 12\r\n\r\n{}"))
	assert.ErrorIs(t, err, ErrMalformedHeader)
	assert.Zero(t, dec.Buffered())
}

func TestNegativeContentLengthIsMalformed(t *testing.T) {
	dec := &Decoder{}
	_, err := dec.Feed([]byte("Content-Length: -3\r\n\r\n{}"))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestUnparsableBodyDroppedSilently(t *testing.T) {
	garbage := "{not json"
	bad := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(garbage), garbage)
	good, err := Encode(NewRequest(2, "ping", struct{}{}))
	require.NoError(t, err)

	dec := &Decoder{}
	msgs, decErr := dec.Feed([]byte(bad + string(good)))
	require.NoError(t, decErr)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ID)
	assert.Equal(t, uint64(2), *msgs[0].ID)
	assert.Zero(t, dec.Buffered())
}

func TestNoDelimiterBuffersInput(t *testing.T) {
	dec := &Decoder{}
	msgs, err := dec.Feed([]byte("Content-Length: 10\r\n"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, len("Content-Length: 10\r\n"), dec.Buffered())
}

func TestErrorImplementsError(t *testing.T) {
	e := &Error{Code: -32000, Message: "receipt not found"}
	assert.Equal(t, "receipt not found (code -32000)", e.Error())
	assert.Equal(t, "boom", (&Error{Message: "boom"}).Error())
}
