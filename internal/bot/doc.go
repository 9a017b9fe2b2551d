// Package bot implements the chat command surface: guild setup, username
// linking, solve checks, manual posting and the leaderboards.
//
// Handlers read and write the store directly and apply streak transitions
// under a per-user lock. Posting goes through daily.Coordinator.
package bot
