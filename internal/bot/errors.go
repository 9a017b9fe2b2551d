package bot

import "errors"

// ValidationError is a rejected command argument. Msg is shown to the caller.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotConfiguredError means a guild config or a user link is missing. Msg
// tells the caller which setup command to run.
type NotConfiguredError struct {
	Msg string
}

func (e *NotConfiguredError) Error() string { return e.Msg }

var errGuildOnly = errors.New("command requires a guild")

const (
	msgInternal    = "Something went wrong. Please try again later."
	msgGuildOnly   = "This command can only be used in a server."
	msgUnknown     = "Unknown command. Use `/help` to list commands."
	msgNeedSetup   = "Please set up your LeetCode username with /setup_username"
	msgNoConfig    = "No configuration found. Use `/setup_channel` first."
	msgNoConfigSet = "No configuration found. Use `/setup_channel` to set up daily posts."
	msgNoProblem   = "No daily problem posted yet."
	msgFetchFailed = "Failed to fetch daily problem. Try again later."
	msgNoChannel   = "Could not find the configured channel."
)

func outcomeOf(err error) string {
	var ve *ValidationError
	var ne *NotConfiguredError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ne):
		return "not_configured"
	case errors.Is(err, errGuildOnly):
		return "guild_only"
	default:
		return "error"
	}
}
