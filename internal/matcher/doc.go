// Package matcher scores library records against a query material using a
// weighted blend of sampler-slot overlap, parameter agreement, shader-path
// similarity, and name-token overlap. Scoring fans out across a worker pool
// and results order deterministically regardless of worker count.
package matcher
