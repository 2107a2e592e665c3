// Package extraction drives the external unpack/repack tool that converts
// material archives to and from XML definition workspaces. Command execution
// sits behind an Executor so tests run without the real binary.
package extraction
