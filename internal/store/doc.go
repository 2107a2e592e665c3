// Package store persists material libraries in SQLite, one database file
// per library. A read-write store holds an advisory file lock for its
// lifetime so concurrent importers cannot interleave; read-only stores skip
// the lock and open the database in ro mode.
package store
