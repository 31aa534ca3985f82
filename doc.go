// Package coachmem is a Redis-backed conversation memory for tutoring agents.
//
// It stores threads (conversations owned by a resource such as a student or
// a session) and the ordered messages inside them, and answers recency
// queries over those messages.
//
// # Quick Start
//
//	mem, err := coachmem.Open(ctx, coachmem.WithRedisURL("redis://localhost:6379"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mem.Close()
//
//	thread, err := mem.CreateThread(ctx, "student-42", "Fractions", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = mem.AddMessage(ctx, thread.ID, store.RoleUser, "What is 1/2 + 1/3?", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := mem.Query(ctx, thread.ID, memory.Last(10))
//
// # Packages
//
//   - backend: key-value backend contract and its Redis implementation
//   - store: thread and message records on top of a backend
//   - memory: the adapter consumed by agent runtimes, with tracing and metrics
//   - filter: CEL expressions over thread fields
//   - config: YAML and environment configuration
//   - health: backend health checks and the periodic monitor
//   - httpapi: JSON HTTP surface used by cmd/coachmemd
//
// # Errors
//
// Each package defines sentinel errors usable with errors.Is. KindOf maps any
// of them to a coarse category:
//
//	if coachmem.KindOf(err) == coachmem.KindNotFound {
//	    // ...
//	}
package coachmem
