// Package ws provides WebSocket connection handling and delta broadcasting.
//
// Each room has a Hub that fans committed deltas out to every bound client in
// version order. Clients track the last version they applied and discard
// anything at or below it, so at-least-once delivery is safe. A resuming
// client catches up from the replay buffer, or from a full snapshot when the
// buffer no longer covers its gap.
package ws
