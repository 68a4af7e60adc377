// Package component defines the lifecycle interfaces shared by the client,
// the connection monitor and telemetry providers, plus a Registry that
// starts them in order and stops them in reverse.
package component
