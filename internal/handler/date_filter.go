package handler

import (
	"errors"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

func parseDateQuery(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseRangeQuery reads from/to as a half-open range. A bare "to" date
// covers that whole day; missing bounds default to the last seven days.
func parseRangeQuery(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	from, err := parseDateQuery(r, "from", loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from date")
	}
	to, err := parseDateQuery(r, "to", loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to date")
	}
	end := now
	if to != nil {
		end = *to
		if len(r.URL.Query().Get("to")) == len(dateLayout) {
			end = end.AddDate(0, 0, 1)
		}
	}
	start := end.AddDate(0, 0, -7)
	if from != nil {
		start = *from
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return start, end, nil
}
