// Package memory exposes conversation recall to an agent runtime.
//
// Adapter is the single entry point the runtime talks to. It is a stateless
// façade over store.ThreadStore and store.MessageStore that translates a
// retrieval request into the right store call, applies configured defaults
// and adds tracing and metrics around every operation.
//
// # Threads
//
// Threads are created, read, updated and deleted through the adapter:
//
//	thread, err := adapter.CreateThread(ctx, "student-42", "Quadratics", nil)
//
//	threads, err := adapter.GetThreadsByResourceID(ctx, "student-42")
//	for _, t := range threads {
//	    fmt.Printf("%s updated %v\n", t.Title, t.UpdatedAt)
//	}
//
// # Recall
//
// Query takes a SelectBy describing which messages are wanted:
//
//	res, err := adapter.Query(ctx, thread.ID, memory.Last(10))  // newest 10, newest first
//	res, err = adapter.Query(ctx, thread.ID, memory.First(10))  // oldest 10, oldest first
//	res, err = adapter.Query(ctx, thread.ID, memory.All())      // up to MaxAllMessages, newest first
//
// A zero SelectBy, or Last/First with a non-positive count, uses the
// configured LastMessages window (15 by default).
//
// Recall is recency based only. Setting SemanticRecall in the Config makes New
// fail with ErrSemanticRecallUnsupported.
//
// # Resetting State
//
// ClearResource deletes every thread of one resource. Clear flushes the whole
// backend and is refused with ErrFlushDisabled unless Config.AllowFlush is set,
// which is meant for test and staging environments only.
//
// # Error Handling
//
// Not-found conditions are results, not errors: GetThreadByID and UpdateThread
// return a nil thread, DeleteThread returns false and queries on unknown
// threads return empty slices. Backend failures are returned to the caller
// as-is, wrapped with context; nothing is retried.
package memory
