// Package queue provides asynchronous run execution. Submitted runs are
// buffered and drained by a fixed pool of workers, each worker driving one
// orchestrated run to completion at a time. The pool size is the single
// global concurrency cap: exceeding it queues rather than rejects, until the
// buffer itself is full.
package queue
