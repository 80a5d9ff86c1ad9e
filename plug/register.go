package plug

import (
	"github.com/fxsml/goplug"
)

// Registry names of the built-in plugs. Plugs carrying function-valued
// options (dead_letter) are not registered; configuration files cannot
// express them.
func init() {
	goplug.Register("created_by", CreatedBy())
	goplug.Register("created_at", CreatedAt())
	goplug.Register("message_id", MessageID())
	goplug.Register("correlation_id", CorrelationID())
	goplug.Register("destination", Destination())
	goplug.Register("format", Format())
	goplug.Register("parse", Parse())
	goplug.Register("encode", Encode())
	goplug.Register("decode", Decode())
	goplug.Register("log", Log())
	goplug.Register("limit", Limit())
	goplug.Register("rate_limit", RateLimit())
	goplug.Register("retry", Retry())
	goplug.Register("recover", Recover())
	goplug.Register("ack_error", AckError())
	goplug.Register("nack_error", NackError())
}
