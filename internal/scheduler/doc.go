// Package scheduler runs the multi-account dispatch loop.
//
// Each account gets one independent stream under a supervisor:
//   - compute the wait until the account's next cron fire
//   - suspend on the injected Clock (cancellable)
//   - dispatch the generate-and-send pipeline under a per-fire deadline
//   - report success or failure to the result sink
//   - rearm from the instant observed after dispatch
//
// Streams share nothing with each other. One account's failure, panic, or
// slow dispatch never delays another account. Shutdown wakes all sleepers
// immediately; in-flight dispatches finish rather than being aborted.
//
// Accounts whose cron expression is malformed or matches no future instant
// are excluded individually and the rest keep running.
package scheduler
