// Package store provides SQLite-backed durable storage for questionnaire
// answers collected on the device.
//
// The store holds two kinds of record:
//   - Field groups: one row per questionnaire page, the page's answers
//     stored as canonical JSON
//   - Point values: single reserved scalars such as the remote form
//     identifier and the session key
//
// # Ordering
//
// Every field group write is stamped with seq INTEGER, a logical write
// counter allocated inside the write transaction. Snapshots flatten
// groups ORDER BY seq ASC, so when two groups define the same field the
// most recently written group wins. Wall-clock time is never used.
//
// # Atomicity
//
// A group is written in a single transaction. A failed write leaves the
// previous value of the group untouched and returns *StorageWriteError.
//
// # Database Configuration
//
//   - WAL mode: reads proceed during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: writes are serialized
package store
