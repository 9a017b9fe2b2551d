package bot

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gookit/validate"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"leetbot/internal/domain"
)

const (
	DefaultPostHour   = 9
	DefaultPostMinute = 0
)

const (
	msgBadHour       = "Hour must be between 0 and 23."
	msgBadMinute     = "Minute must be between 0 and 59."
	msgBadDifficulty = "Difficulty must be: random, easy, medium, or hard."
)

type setupForm struct {
	Hour       int    `validate:"min:0|max:23"`
	Minute     int    `validate:"min:0|max:59"`
	Difficulty string `validate:"in:random,easy,medium,hard"`
}

var fieldMessages = map[string]string{
	"hour":       msgBadHour,
	"minute":     msgBadMinute,
	"difficulty": msgBadDifficulty,
}

// parseSetup reads the schedule arguments of setup_channel, applying the
// defaults hour=9, minute=0, difficulty=random.
func parseSetup(args map[string]string) (hour, minute int, d domain.Difficulty, err error) {
	hour, minute = DefaultPostHour, DefaultPostMinute
	if s := strings.TrimSpace(args["hour"]); s != "" {
		if hour, err = strconv.Atoi(s); err != nil {
			return 0, 0, "", &ValidationError{Field: "hour", Msg: msgBadHour}
		}
	}
	if s := strings.TrimSpace(args["minute"]); s != "" {
		if minute, err = strconv.Atoi(s); err != nil {
			return 0, 0, "", &ValidationError{Field: "minute", Msg: msgBadMinute}
		}
	}
	raw := strings.ToLower(strings.TrimSpace(args["difficulty"]))
	if raw == "" {
		raw = string(domain.DefaultDifficulty)
	}

	form := &setupForm{Hour: hour, Minute: minute, Difficulty: raw}
	v := validate.Struct(form)
	if !v.Validate() {
		field, msg := firstError(v.Errors)
		if m, ok := fieldMessages[field]; ok {
			msg = m
		}
		if field == "difficulty" {
			if s := suggestDifficulty(raw); s != "" {
				msg += " Did you mean `" + s + "`?"
			}
		}
		return 0, 0, "", &ValidationError{Field: field, Msg: msg}
	}
	return hour, minute, domain.Difficulty(raw), nil
}

func firstError(es validate.Errors) (field, msg string) {
	for _, f := range []string{"hour", "minute", "difficulty"} {
		for k, ms := range es {
			if !strings.EqualFold(k, f) {
				continue
			}
			for _, m := range ms {
				return f, m
			}
		}
	}
	return "", es.One()
}

// suggestDifficulty returns the closest accepted difficulty to s, or "".
func suggestDifficulty(s string) string {
	names := make([]string, 0, 4)
	for _, d := range domain.Difficulties() {
		names = append(names, string(d))
	}
	if ranks := fuzzy.RankFindFold(s, names); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, n := range names {
		if d := fuzzy.LevenshteinDistance(s, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
