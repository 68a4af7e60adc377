// Package chunk provides the bounded hand-off between the goroutine reading a
// response body off the wire and the goroutine extracting a result from it.
//
// A Chunk is a view over producer-owned bytes plus a release callback. The
// consumer must call Release exactly once when it is done with the bytes; after
// that the producer may reuse the buffer.
//
// A Channel bounds the number of outstanding chunks (offered and not yet
// released). Offer suspends the producer goroutine while the bound is reached,
// which is the backpressure between the network and a slow extractor:
//
//	ch := chunk.NewChannel(4)
//	go func() {
//	    for buf := range bufs {
//	        if err := ch.Offer(ctx, chunk.New(buf, nil)); err != nil {
//	            return
//	        }
//	    }
//	    ch.Close()
//	}()
//	for {
//	    c, err := ch.Receive(ctx)
//	    if err != nil {
//	        break // io.EOF at end of stream
//	    }
//	    use(c.Bytes())
//	    c.Release()
//	}
package chunk
