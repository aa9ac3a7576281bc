// Package trigger is the scheduler surface of l10nsched.
//
// A Triggerable is a registered downstream scheduler: it owns one fan-out
// controller and fires when an upstream build completes (Trigger). The
// Service keeps the registry and, for schedulers with a nightly spec,
// drives cron-based firings. The service only triggers; all enqueue work
// happens in the fan-out controller and the build database.
package trigger
