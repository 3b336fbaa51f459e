// Package store provides SQLite-backed storage for compile reports.
//
// Every compile the CLI is asked to archive becomes one row in reports,
// holding the canonical JSON of the ir.CompileReport, plus one row per
// physical slot in slots so capacity questions can be answered in SQL.
//
// # Ordering
//
//   - Reports are numbered by seq INTEGER in archive order, never by timestamps
//   - All list queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Identity
//
//   - id is a UUIDv7 generated at write time
//   - spec_hash and layout_hash come from internal/ir and are stable
//     across machines; the same description compiled the same way twice
//     yields two rows with equal hashes
//
// # Connections
//
// Pragmas are set through the DSN: WAL journaling, synchronous=NORMAL,
// a 5 second busy timeout and foreign keys. The pool holds one connection.
package store
