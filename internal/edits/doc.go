// Package edits applies batch texture-path edits to library records and
// maintains the bounded undo/redo history. Every apply, undo, and redo is a
// single store transaction: either all selected records change or none do.
package edits
