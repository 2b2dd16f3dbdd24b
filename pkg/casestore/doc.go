// Package casestore is the persistence layer for the fraud-case
// tracking workflow. It owns a local SQLite database with two tables,
// cases and transactions, and exposes the access contract the rest of
// the system calls into: lookup by name or customer ID, status updates
// with an append-only note trail, atomic case-plus-transaction
// creation, and listing.
//
// Two properties of the contract are deliberate and load-bearing:
//
//   - Reads swallow, writes report. A storage failure during a lookup
//     or listing is logged and degraded to absence or an empty slice;
//     the caller cannot tell it apart from a genuine miss. Write
//     operations instead return ErrNotFound or ErrDuplicateCase for the
//     expected outcomes and a wrapped error for real failures.
//
//   - The "most recent transaction" attached to a case is the one with
//     the highest insertion-order ID, not the latest timestamp value;
//     the timestamp column is opaque text at this layer.
package casestore
