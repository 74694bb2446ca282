// Package logging wraps log/slog with the handlers and attribute helpers the
// rest of the repository uses.
//
// It provides a console handler for interactive runs, a JSON handler for
// machine consumption, component loggers, and context decoration that stamps
// run and stage identifiers onto every record.
package logging
