// Package journal follows the game's journal directory and reports arrivals
// in star systems.
//
// The journal is a set of append-only, newline-delimited JSON files. A new
// file is started per game session; the newest file is the live one. The
// Tailer finds that file with a Locator, reads appended complete lines,
// extracts arrivals with a Parser and hands them to a Sink.
package journal
