// Package emergency implements the one-shot escalation state machine.
//
// The Controller moves ARMED→TRIGGERED exactly once, on the first critical
// verdict; TRIGGERED is terminal until an explicit external Rearm. On
// transition it builds an immutable Event and hands it to each persistence
// Sink under a bounded write timeout; a slow or failing sink is logged and
// abandoned, never allowed to delay the shutdown signal.
package emergency
