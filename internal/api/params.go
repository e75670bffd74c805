package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/khata/internal/engine"
)

const dateLayout = "2006-01-02"

// parseDateRange reads "YYYY-MM-DD,YYYY-MM-DD". The end date is inclusive
// through the last instant of that day.
func parseDateRange(raw string) (*engine.DateRange, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("date_range must be START,END, got %q", raw)
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid date_range start %q", parts[0])
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid date_range end %q", parts[1])
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date_range ends before it starts")
	}
	return &engine.DateRange{
		Start: start,
		End:   end.Add(24*time.Hour - time.Nanosecond),
	}, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryFloat(q url.Values, key string, def float64) (float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("%s must be a number between 0 and 1", key)
	}
	return f, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return b, nil
}
