// Package metrics recomputes typing statistics from a raw keystroke log.
//
// Nothing a client reports about its own performance is trusted. The
// functions here derive WPM, accuracy and consistency from the append-only
// keystroke log alone, and Verify compares client-submitted figures against
// that canonical recomputation. The canonical values are always
// authoritative; client numbers are only ever a fraud signal.
//
// Computation is total: corrupt or empty input produces a zeroed
// SessionMetrics with IsValid=false and itemized ValidationErrors instead
// of an error, because the validity flag is itself diagnostic output.
package metrics
