// Package material defines the normalized material record model and the
// pure parser/encoder for the XML definition files emitted by the external
// unpack tool. Parsing performs no filesystem or network access so it can run
// on any import worker without coordination.
package material
