// Package netstate reduces raw connectivity signals and the user's network
// policy into a single ConnectionState that gates queue dispatch.
//
// The reduction itself is a pure function (Reduce). The Tracker keeps the
// latest transport snapshot, applies the transient Connecting and
// Disconnecting states reported by the platform and notifies subscribers
// once per state change.
package netstate
