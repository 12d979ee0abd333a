// Package taskgrid provides the task-routing core of a workflow platform.
//
// A process engine surfaces external tasks carrying declarative routing
// metadata; taskgrid resolves each task to a live execution service, invokes
// it under timeout/retry/connection-pooling discipline and records the
// interaction for audit and replay. Pluggable layers include:
//
//   - registry   – logical (type, name) identity to endpoint resolution
//   - definition – parsed definition cache with routing metadata extraction
//   - router     – task to dispatch decision binding
//   - dispatch   – pooled transport, retries, circuit breaking, batching
//   - analysis   – asynchronous dispatch recording and querying
//
// Taskgrid is designed to be embedded in host applications. End-users
// typically interact via the high-level Service façade exposed by the root
// package:
//
//	srv := taskgrid.New(taskgrid.WithEngineAdapter(adapter))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	result, _ := rt.Dispatch(ctx, task)
//
// For more details see the README and individual sub-packages.
package taskgrid
