// Package logging assembles the slog loggers used by granuledb.
//
// It owns the console/JSON handler choice, level parsing, and output file
// plumbing, and exposes attribute helpers plus standard field names so every
// component emits records with the same shape. A no-op logger is provided for
// tests and for library callers that do not want output.
package logging
