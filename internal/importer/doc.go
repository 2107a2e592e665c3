// Package importer runs the concurrent archive import pipeline: archives
// are extracted and parsed on a worker pool, then committed to the library
// one transaction per archive by a single writer, in the order the archives
// were given. A failed archive never disturbs the records of another.
package importer
