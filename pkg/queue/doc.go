// Package queue moves notification ids between the processes that create
// notifications and the workers that deliver them.
//
// The queue carries ids only. A worker dequeues an id, re-reads the full
// notification from the backend, and dispatches it through the pipeline's
// DelayedSend, so the record in the backend stays the single source of truth
// and stale payloads cannot be delivered.
//
// RedisQueue is the production implementation, a plain Redis list consumed
// with blocking pops. MemoryQueue serves tests and single-process setups.
// Worker is the consuming loop; wire it to a pipeline:
//
//	client, err := queue.Connect(ctx, cfg)
//	if err != nil {
//	    // handle connection error
//	}
//	q, err := queue.NewRedisQueue(client, cfg)
//	worker, err := queue.NewWorker(q, pipeline, queue.WithConcurrency(cfg.MaxConcurrentTasks))
//	go worker.Run(ctx)
//
// The same RedisQueue value is passed to the pipeline as its QueueService so
// adapters configured for queued delivery enqueue into the list the worker
// consumes.
package queue
