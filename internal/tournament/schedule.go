package tournament

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"tournament-bot/internal/util"
)

const (
	msgTimeRequired = "scheduled time is required"
	msgTimeFormat   = "time format must be YYYY-MM-DD HH:MM"
	msgTimePast     = "scheduled time must not be in the past"
)

// ParseScheduledTime accepts only "YYYY-MM-DD HH:MM" in loc and rejects the past.
func ParseScheduledTime(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, invalid("scheduled_time", msgTimeRequired)
	}
	t, err := time.ParseInLocation(util.TimeLayout, input, orLocal(loc))
	if err != nil {
		return time.Time{}, invalid("scheduled_time", msgTimeFormat)
	}
	if t.Before(now) {
		return time.Time{}, invalid("scheduled_time", msgTimePast)
	}
	return t, nil
}

// ParseScheduleInput is the admin chat variant: the strict layout first,
// then English phrases such as "tomorrow at 6pm" or "in 2 hours".
func ParseScheduleInput(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, invalid("scheduled_time", msgTimeRequired)
	}
	loc = orLocal(loc)
	if _, err := time.ParseInLocation(util.TimeLayout, input, loc); err == nil {
		return ParseScheduledTime(input, now, loc)
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(strings.ToLower(input), now.In(loc))
	if err != nil || r == nil {
		return time.Time{}, invalid("scheduled_time", msgTimeFormat)
	}
	t := r.Time.In(loc).Truncate(time.Minute)
	if t.Before(now.Truncate(time.Minute)) {
		return time.Time{}, invalid("scheduled_time", msgTimePast)
	}
	return t, nil
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
