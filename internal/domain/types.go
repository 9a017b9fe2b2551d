package domain

import (
	"time"
)

// DayLayout formats calendar dates used as record keys.
const DayLayout = "2006-01-02"

// Day returns the calendar date of t in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// User is a linked chat member. ID is the platform user id.
type User struct {
	ID          string     `json:"discord_id" bson:"_id"`
	Username    string     `json:"leetcode_username" bson:"leetcode_username"`
	SolvedCount int        `json:"solved_count" bson:"solved_count"`
	Streak      int        `json:"streak" bson:"streak"`
	LastSolve   *time.Time `json:"last_solve_date,omitempty" bson:"last_solve_date,omitempty"`

	// Seq orders users by first insertion. Assigned by the store.
	Seq int64 `json:"seq" bson:"seq"`
}

// Linked reports whether the user finished setup_username.
func (u User) Linked() bool { return u.Username != "" }

// SolvedOn reports whether the last solve falls on day (see Day).
func (u User) SolvedOn(day string, loc *time.Location) bool {
	if u.LastSolve == nil {
		return false
	}
	return Day(*u.LastSolve, loc) == day
}

// GuildConfig drives exactly one daily trigger for its guild.
type GuildConfig struct {
	GuildID    string     `json:"guild_id" bson:"_id"`
	ChannelID  string     `json:"channel_id" bson:"channel_id"`
	PostHour   int        `json:"post_hour" bson:"post_hour"`
	PostMinute int        `json:"post_minute" bson:"post_minute"`
	Difficulty Difficulty `json:"difficulty" bson:"difficulty"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// DailyProblemRecord claims the problem of a guild for one calendar day.
// (GuildID, Date) is unique and records are never mutated.
type DailyProblemRecord struct {
	GuildID    string     `json:"guild_id" bson:"guild_id"`
	Date       string     `json:"date" bson:"date"`
	ProblemID  string     `json:"problem_id" bson:"problem_id"`
	Title      string     `json:"title" bson:"title"`
	Slug       string     `json:"slug" bson:"slug"`
	Difficulty Difficulty `json:"difficulty" bson:"difficulty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// RecordKey is the idempotency key of a daily record.
func RecordKey(guildID, date string) string { return guildID + ":" + date }

func (r DailyProblemRecord) Key() string { return RecordKey(r.GuildID, r.Date) }

// SolveSource tells how a solve was registered.
type SolveSource string

const (
	SolveAuto   SolveSource = "auto"
	SolveManual SolveSource = "manual"
)

// SolveEntry is an append-only audit row written on every counted solve.
type SolveEntry struct {
	UserID    string      `json:"user_id" bson:"user_id"`
	GuildID   string      `json:"guild_id" bson:"guild_id"`
	Date      string      `json:"date" bson:"date"`
	ProblemID string      `json:"problem_id" bson:"problem_id"`
	Source    SolveSource `json:"source" bson:"source"`
	Streak    int         `json:"streak" bson:"streak"`
	At        time.Time   `json:"at" bson:"at"`
}

// Problem is what the provider returns.
type Problem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// ProblemURLBase prefixes problem slugs.
const ProblemURLBase = "https://leetcode.com/problems/"

func (p Problem) URL() string { return ProblemURLBase + p.Slug + "/" }
