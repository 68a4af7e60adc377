// Package operation runs one HTTP request through the response engine and
// exposes its eventual result as a Handle.
//
// Submit starts the exchange and returns at once. The transport drives a
// response.Assembler; once headers arrive an extraction task is scheduled on
// the engine's pool, reads the body and resolves the handle. Cancelling the
// handle, or the context passed to Submit, resolves it as CANCELLED right
// away, releases every queued body chunk and asks the transport to tear the
// connection down.
//
//	h := operation.Submit(ctx, engine, req, extract.JSON[User]())
//	user, err := h.Await(5 * time.Second)
package operation
