// Package queue provides the in-memory queues that connect dispatcher
// loops, and the admission check that keeps the work queue bounded.
//
// # FIFO
//
// [FIFO] is an unbounded, mutex-guarded first-in first-out queue. Producers
// call Push or PushAll; consumers call TryPop, which never blocks. A
// consumer that finds the queue empty can wait on Ready instead of
// polling:
//
//	q := queue.NewFIFO[string]()
//	for {
//	    v, ok := q.TryPop()
//	    if !ok {
//	        select {
//	        case <-q.Ready():
//	        case <-time.After(3 * time.Second):
//	        }
//	        continue
//	    }
//	    handle(v)
//	}
//
// # Admission
//
// [Admission] caps how far a producer may run ahead of its consumers. It
// refuses new work while the queue depth is at or above a high watermark
// and can additionally apply a token-bucket rate (golang.org/x/time/rate):
//
//	a := queue.NewAdmission(queue.AdmissionConfig{
//	    HighWatermark: 8,   // stop fetching at 8 queued items
//	    RateLimit:     10,  // at most 10 fetches/s
//	    RateBurst:     20,
//	})
//	switch verdict, wait := a.Check(q.Len()); verdict {
//	case queue.Full:
//	    // back off
//	case queue.Throttled:
//	    time.Sleep(wait)
//	}
package queue
