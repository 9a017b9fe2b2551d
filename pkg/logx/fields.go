package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field adds one key to an event. Later fields overwrite earlier ones with
// the same key.
type Field func(e *zerolog.Event)

func String(k, v string) Field      { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field     { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Bool(k string, v bool) Field   { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Any(k string, v any) Field     { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}

// Err records err under "err". A nil error adds nothing.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Keys shared by every package so log lines can be grepped per guild or user.
const (
	KeyComponent = "comp"
	KeyGuild     = "guild"
	KeyUser      = "user"
)

// Component tags a derived logger with the subsystem that owns it.
func Component(name string) Field { return String(KeyComponent, name) }

// Guild tags a line with a Discord guild id.
func Guild(id string) Field { return String(KeyGuild, id) }

// User tags a line with a Discord user id.
func User(id string) Field { return String(KeyUser, id) }
