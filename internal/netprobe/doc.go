// Package netprobe is the host connectivity source behind the netstate
// tracker. Snapshots come from the interface table and the routing table;
// on Linux, kernel uevents for the net subsystem are turned into tracker
// signals, with a periodic snapshot to catch link changes the kernel does
// not announce.
package netprobe
