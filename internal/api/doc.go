// Package api serves the guard's JSON status surface: current report,
// window contents, emergency event history, and the external rearm
// operation. Handlers read monitor state through narrow interfaces so the
// package stays decoupled from the loop internals.
package api
