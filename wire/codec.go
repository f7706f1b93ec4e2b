package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	headerName      = "Content-Length:"
	headerDelimiter = "\r\n\r\n"
	lineDelimiter   = "\r\n"
)

// ErrMalformedHeader reports a header block without a valid Content-Length.
// The stream is considered desynchronized at that point and the decoder drops
// everything it has buffered; decoding can only resume if frame boundaries
// realign on later input.
var ErrMalformedHeader = errors.New("wire: malformed frame header")

// Encode serializes msg to JSON and prepends the Content-Length header. The
// declared length is the exact byte count of the JSON body.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode message: %w", err)
	}

	frame := make([]byte, 0, len(body)+32)
	frame = append(frame, fmt.Sprintf("Content-Length: %d%s", len(body), headerDelimiter)...)
	frame = append(frame, body...)

	return frame, nil
}

// Decoder incrementally decodes a frame stream. It owns a receive buffer that
// accumulates bytes across reads; after every Feed the buffer holds exactly
// the unconsumed tail of the stream. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends p to the receive buffer and extracts every complete message
// currently available. A single read can carry several frames, so extraction
// loops until the buffer no longer holds a full frame.
//
// Two failure modes are handled differently:
//   - A header block without a valid non-negative Content-Length poisons the
//     whole buffer. It is discarded and ErrMalformedHeader returned alongside
//     any messages decoded before the bad header.
//   - A body that is not valid JSON drops only that frame; decoding continues
//     with the rest of the buffer.
func (d *Decoder) Feed(p []byte) ([]Message, error) {
	d.buf = append(d.buf, p...)

	var msgs []Message
	for {
		idx := bytes.Index(d.buf, []byte(headerDelimiter))
		if idx < 0 {
			// No complete header yet; wait for more bytes.
			return msgs, nil
		}

		length, ok := parseContentLength(d.buf[:idx])
		if !ok {
			d.buf = nil
			return msgs, ErrMalformedHeader
		}

		bodyStart := idx + len(headerDelimiter)
		if len(d.buf) < bodyStart+length {
			// Body not fully buffered yet.
			return msgs, nil
		}

		body := d.buf[bodyStart : bodyStart+length]

		var msg Message
		if err := json.Unmarshal(body, &msg); err == nil {
			msgs = append(msgs, msg)
		}
		// An unparsable body drops that one frame; the frame boundary itself
		// was sound, so the stream stays aligned.

		d.buf = d.buf[bodyStart+length:]
		if len(d.buf) == 0 {
			d.buf = nil
		}
	}
}

// Buffered returns the number of bytes awaiting a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = nil
}

// parseContentLength scans the header block (everything before the blank
// line) for a Content-Length line and parses its decimal value.
func parseContentLength(header []byte) (int, bool) {
	for _, line := range bytes.Split(header, []byte(lineDelimiter)) {
		rest, found := bytes.CutPrefix(line, []byte(headerName))
		if !found {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(rest)))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
