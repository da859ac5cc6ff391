package validate

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

// ReferenceZone is the timezone provider timestamps are normalised to.
const ReferenceZone = "America/Chicago"

var referenceLocation = mustLoadLocation(ReferenceZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// read in the reference timezone.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, referenceLocation); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("validate: unparseable timestamp %q", s)
}

// Timestamp checks that ts parses and, unless allowFuture is set, is not
// after now.
func Timestamp(ts string, allowFuture bool, now time.Time, check string) model.CheckResult {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return model.CheckResult{
			Check:   check,
			Status:  model.CheckFail,
			Message: fmt.Sprintf("invalid timestamp %q", ts),
		}
	}
	if !allowFuture && t.After(now) {
		return model.CheckResult{
			Check:   check,
			Status:  model.CheckFail,
			Message: fmt.Sprintf("timestamp %s is in the future", t.Format(time.RFC3339)),
			Details: map[string]any{"timestamp": t.Format(time.RFC3339), "now": now.Format(time.RFC3339)},
		}
	}
	return model.CheckResult{
		Check:   check,
		Status:  model.CheckPass,
		Message: "timestamp valid",
	}
}

// SeasonAlignment checks a game date against the season window of its sport.
// A mismatch is a WARNING since summer leagues and fall ball are legitimate.
// It returns false when the sport has no window or the timestamp is invalid.
func (t Thresholds) SeasonAlignment(ts string, season int, sport string) (model.CheckResult, bool) {
	w, ok := t.Seasons[strings.ToLower(sport)]
	if !ok || sport == "" {
		return model.CheckResult{}, false
	}
	at, err := ParseTimestamp(ts)
	if err != nil {
		return model.CheckResult{}, false
	}
	at = at.In(referenceLocation)
	month, year := int(at.Month()), at.Year()

	var aligned bool
	if w.crossesYear() {
		aligned = (year == season && month >= w.StartMonth) || (year == season+1 && month <= w.EndMonth)
	} else {
		aligned = year == season && month >= w.StartMonth && month <= w.EndMonth
	}

	if !aligned {
		return model.CheckResult{
			Check:  "season_alignment",
			Status: model.CheckWarning,
			Message: fmt.Sprintf("%s game dated %s falls outside the %d season window (months %d-%d)",
				sport, at.Format("2006-01-02"), season, w.StartMonth, w.EndMonth),
			Details: map[string]any{"sport": sport, "season": season, "date": at.Format("2006-01-02")},
		}, true
	}
	return model.CheckResult{
		Check:   "season_alignment",
		Status:  model.CheckPass,
		Message: "game date within season window",
	}, true
}
