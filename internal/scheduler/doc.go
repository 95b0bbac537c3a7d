// Package scheduler is the deferred job bridge of warpq: it holds at most
// one pending registration of the dispatch job and runs it once the
// registration's constraints allow, or its deadline passes.
//
// A single goroutine owns the registration and sleeps until the next
// moment anything could change, capped at 60 seconds so NTP steps, DST
// transitions and system sleep never leave it waiting on a stale timer.
// Network changes should be forwarded with Poke so a waiting job reacts
// immediately instead of at the next wake-up.
package scheduler
