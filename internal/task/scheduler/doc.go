// Package scheduler registers named cron triggers and enqueues their jobs
// into the task engine when they fire.
//
// Schedules are keyed by name: adding a schedule under an existing name
// replaces it, so re-registering at startup never duplicates triggers.
// All triggers are evaluated in one configurable timezone.
package scheduler
