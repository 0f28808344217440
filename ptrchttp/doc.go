// Package ptrchttp exposes a [ptrc.Session] over HTTP.
//
// [Server] lets an operator start, stop, and flush a session in a running
// process. [Middleware] records a span for every HTTP request. [EventStream]
// and [StreamServer] publish events as they're captured, as server-sent
// events, and [StreamClient] consumes them.
package ptrchttp
