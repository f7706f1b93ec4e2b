// Package wire implements the framing and envelope layer of the zkputer MCP
// protocol. Messages are JSON-RPC 2.0 shaped objects carried in frames of the
// form
//
//	Content-Length: <n>\r\n\r\n<n bytes of JSON>
//
// Encode produces a single complete frame. Decoder consumes an arbitrary byte
// stream (reads may split a frame anywhere, or deliver several frames at
// once) and yields every complete message as soon as it is available. The
// package has no opinion about message semantics; the client and transport
// layers interpret requests, responses and notifications.
package wire
