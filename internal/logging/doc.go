// Package logging builds the slog loggers used across matport. It provides
// console and JSON handlers, attribute helpers, and component-scoped child
// loggers so every subsystem tags its output consistently.
package logging
