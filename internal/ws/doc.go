// Package ws provides the WebSocket hub that pushes live status reports to
// connected dashboards on a fixed interval.
package ws
