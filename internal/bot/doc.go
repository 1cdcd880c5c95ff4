// Package bot simulates a synthetic typist racing through the same state
// machine contract a human client uses.
//
// A bot produces a believable keystroke stream: log-normally distributed
// inter-keystroke intervals, occasional hesitation pauses and typing
// bursts, QWERTY-neighbor typos, and self-corrections recorded as real
// backspace-and-retype keystrokes with their own timestamps.
//
// Every random draw goes through an injected *rand.Rand and every step
// takes the current time as a parameter, so a fixed seed replays a race
// byte-for-byte. The package never sleeps and never reads the wall clock;
// pacing is the caller's job.
package bot
