// Package race implements the server-authoritative race state machine.
//
// A race is a value: every transition is a pure function from one Snapshot
// to the next, never a mutation in place. The package performs no I/O,
// holds no locks, and never reads the wall clock - callers pass the current
// time explicitly. This makes every transition replayable and trivially
// testable.
//
// Concurrency is resolved outside this package via optimistic concurrency
// control: every accepted transition increments Version by exactly one, and
// the persistence layer must write a snapshot only when the stored version
// still matches the version the transition was computed from. On conflict
// the caller re-reads and retries.
//
// Idempotent transitions (StartCountdown, StartRace, Complete, Cancel)
// report "already done" with changed=false rather than an error, so a
// duplicated or retried client command is a safe no-op instead of a
// double-applied side effect. Callers must branch on changed before
// persisting or broadcasting.
package race
