// Package job defines the Job entity, its state machine, the storage
// contract a backend must satisfy, and the lifecycle transitions the
// engine drives a claimed job through.
//
// # Job Entity
//
// A [Job] carries a raw JSON message and progresses through [Status]:
//
//	waiting → running → completed              (or → waiting if recurring)
//	waiting → running → error → running → ...
//	waiting → running → error → failed
//	waiting/running → expired
//	any → canceled
//
// Fields of note:
//   - UniqueID: cross-queue dedup key enforced by Store.SaveJob
//   - Priority: lower values are claimed first
//   - Retries / Try: retry budget and attempt counter
//   - Recurring / Timezone: cron expression the job rearms against
//   - Scheduled / Acquired / Timeout / Expire: the timing fields the
//     storage contract's selection predicate and claim update key off
//
// # Construction
//
// Use [New] to build a Job from client inputs; [Option] values configure
// unique ID, recurring schedule, retries, priority, and delay:
//
//	j, err := job.New(time.Now(), "send-email", payload, "api",
//	    job.WithRetries(3),
//	    job.WithPriority(-5),
//	)
//
// # Storage
//
// [Store] is the persistence contract every backend implements. Backends
// register a URI scheme via [RegisterBackend]; [Open] selects one by
// parsing a storage URI's scheme. The engine package composes a Store
// with a handler registry and a run loop; a Store implementation need
// only satisfy this package's contract.
package job
