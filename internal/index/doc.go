// Package index owns the persisted catalog of locations, projects, and
// exports backed by SQLite.
//
// Every mutation is one short transaction with busy retry so concurrent
// readers only ever wait on a single in-flight writer. Project upserts apply
// the content-hash deduplication rules: identical bytes at a new path re-path
// the existing record (the move/copy case) instead of inserting a duplicate,
// and changed content at a known path updates that record in place. Records
// whose backing files disappear are marked missing, never hard-deleted.
package index
