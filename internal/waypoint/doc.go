// Package waypoint wires the route core into application services: the
// Planner that turns a set of stops into an ordered route, the Tracker that
// applies journal arrivals and manual marks to the live route, and the App
// that commands and the TUI consume.
package waypoint
