// Package message defines the value type that flows through goplug
// pipelines.
//
// A [Message] carries an arbitrary body plus the envelope fields messaging
// systems care about: identifiers, correlation, content type and encoding,
// provenance, and an acknowledgment status. Messages move by value; the
// copy-on-write header accessors keep copies independent without locks.
//
//	msg := message.Message{Destination: "orders/created", Body: order}
//	msg = msg.WithHeader("tenant", "acme")
package message
