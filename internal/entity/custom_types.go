package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Minutes is a whole-minute duration. It decodes from either a structured
// {"hours","minutes","seconds"} object or a raw number of seconds; fractional
// seconds are floored before conversion.
type Minutes int

type minutesObject struct {
	Hours   float64 `json:"hours"`
	Minutes float64 `json:"minutes"`
	Seconds float64 `json:"seconds"`
}

func MinutesFromSeconds(seconds float64) Minutes {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return Minutes(int64(math.Floor(seconds)) / 60)
}

func (m Minutes) Duration() time.Duration {
	return time.Duration(m) * time.Minute
}

func (m Minutes) String() string {
	return strconv.Itoa(int(m)) + " min"
}

func (m *Minutes) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*m = 0
		return nil
	}

	if strings.HasPrefix(s, "{") {
		var obj minutesObject
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("invalid duration object %s: %w", s, err)
		}
		*m = MinutesFromSeconds(obj.Hours*3600 + obj.Minutes*60 + obj.Seconds)
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(b, &seconds); err != nil {
		return fmt.Errorf("invalid duration %s: %w", s, err)
	}
	*m = MinutesFromSeconds(seconds)
	return nil
}

func (m Minutes) MarshalJSON() ([]byte, error) {
	return []byte(`{"minutes":` + strconv.Itoa(int(m)) + `}`), nil
}

func (m Minutes) Value() (driver.Value, error) {
	return fmt.Sprintf("%d minutes", int(m)), nil
}

// Scan reads numeric values as seconds (EXTRACT(EPOCH FROM ...)) and text
// values either as seconds or as Postgres interval output.
func (m *Minutes) Scan(value interface{}) error {
	if value == nil {
		*m = 0
		return nil
	}

	switch v := value.(type) {
	case int64:
		*m = MinutesFromSeconds(float64(v))
	case float64:
		*m = MinutesFromSeconds(v)
	case []byte:
		return m.scanText(string(v))
	case string:
		return m.scanText(v)
	default:
		return fmt.Errorf("cannot scan type %T into Minutes", value)
	}
	return nil
}

func (m *Minutes) scanText(s string) error {
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*m = MinutesFromSeconds(seconds)
		return nil
	}
	seconds, err := parseInterval(s)
	if err != nil {
		return err
	}
	*m = MinutesFromSeconds(seconds)
	return nil
}

// parseInterval handles the default "postgres" IntervalStyle,
// e.g. "00:10:00", "1 day 02:00:00", "15 mins".
func parseInterval(s string) (float64, error) {
	fields := strings.Fields(s)
	var total float64

	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strings.Contains(f, ":") {
			parts := strings.Split(f, ":")
			if len(parts) < 2 || len(parts) > 3 {
				return 0, fmt.Errorf("invalid interval %q", s)
			}
			sign := 1.0
			if strings.HasPrefix(parts[0], "-") {
				sign = -1
				parts[0] = strings.TrimPrefix(parts[0], "-")
			}
			var clock float64
			for j, unit := range []float64{3600, 60, 1} {
				if j >= len(parts) {
					break
				}
				n, err := strconv.ParseFloat(parts[j], 64)
				if err != nil {
					return 0, fmt.Errorf("invalid interval %q: %w", s, err)
				}
				clock += n * unit
			}
			total += sign * clock
			continue
		}

		n, err := strconv.ParseFloat(f, 64)
		if err != nil || i+1 >= len(fields) {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		i++
		unit := strings.TrimSuffix(fields[i], "s")
		switch unit {
		case "day":
			total += n * 86400
		case "hour":
			total += n * 3600
		case "min", "minute":
			total += n * 60
		case "sec", "second":
			total += n
		default:
			return 0, fmt.Errorf("unsupported interval unit %q in %q", fields[i], s)
		}
	}
	return total, nil
}
