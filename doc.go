// Package goplug assembles message-processing pipelines from reusable
// stages and compiles them, once, into a single handler.
//
// A pipeline is built in two phases. Registration appends stages to a
// [Builder] in order; nothing is resolved yet. Build then resolves every
// stage exactly once (registry lookups, option normalization through each
// plug's Init) and folds the stages into one [Handler]. Misconfiguration
// surfaces at build time; Run never re-resolves anything.
//
//	b := goplug.NewBuilder("outgoing")
//	b.Use("created_by", "myapp")
//	b.Use("message_id")
//	b.UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
//		return next(ctx, msg.WithHeader("seen", true))
//	})
//	p, err := b.Build()
//	if err != nil {
//		// nothing was built
//	}
//	out, err := p.Run(ctx, message.Message{Body: "hi"})
//
// Stages receive the rest of the pipeline as an explicit continuation.
// Calling next(ctx, msg) runs the remaining stages; not calling it
// short-circuits the pipeline with the stage's own return value. Stages may
// also act after the continuation returns, wrapping downstream work the way
// HTTP middleware wraps an inner handler.
//
// A [Pipeline] is itself a [Plug]: register one inside another with Use and
// its stages run in place, preserving their order. The plug subpackage
// provides the built-in stage library and registers it with the default
// registry; the broker subpackage binds pipelines to transports.
package goplug
