// Package extract turns a streamed response into a typed result off the
// transport goroutine.
//
// A Task runs a Func against a response once, resolves the operation's signal
// with the outcome and then drains whatever the function left unread, so every
// buffer goes back to the transport. Tasks run on a Pool whose size is set
// independently of how many requests are in flight.
//
//	pool := extract.NewPool(extract.PoolConfig{Size: 8})
//	task := extract.NewTask(resp, extract.JSON[User](), signal)
//	pool.Schedule(ctx, task.Run, onReject)
package extract
