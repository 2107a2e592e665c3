// Package textutil provides the tokenization and string-similarity
// primitives the matcher builds its scores from.
package textutil
