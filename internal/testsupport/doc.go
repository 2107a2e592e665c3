// Package testsupport provides shared helpers for package tests: temp-dir
// configs, library stores, and canned material definitions.
package testsupport
