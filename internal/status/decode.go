package status

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CheckedLayout is the layout the monitor backend writes last_checked in.
// Epoch values are rendered with it too.
const CheckedLayout = "2006-01-02 15:04:05"

// ErrMalformed marks a body that is not one of the accepted shapes.
var ErrMalformed = errors.New("malformed status payload")

// Decode normalizes a status payload into services. Two shapes are
// accepted: the canonical array of records, and an object keyed by service
// name (the key becomes the name, entries come back sorted by name).
// A JSON null decodes to an empty slice.
func Decode(body []byte) ([]Service, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty body")
	}

	switch trimmed[0] {
	case 'n':
		if string(trimmed) != "null" {
			return nil, errors.Wrap(ErrMalformed, "unexpected literal")
		}
		return []Service{}, nil

	case '[':
		var records []*wireService
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "decode array: %v", err)
		}
		services := make([]Service, 0, len(records))
		for _, r := range records {
			if r == nil {
				r = &wireService{}
			}
			services = append(services, r.service(""))
		}
		return services, nil

	case '{':
		var keyed map[string]*wireService
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "decode mapping: %v", err)
		}
		names := make([]string, 0, len(keyed))
		for name := range keyed {
			names = append(names, name)
		}
		sort.Strings(names)

		services := make([]Service, 0, len(names))
		for _, name := range names {
			r := keyed[name]
			if r == nil {
				r = &wireService{}
			}
			services = append(services, r.service(name))
		}
		return services, nil

	default:
		return nil, errors.Wrap(ErrMalformed, "expected an array or an object")
	}
}

// wireService accepts both backend variants field by field.
type wireService struct {
	Name             looseString `json:"name"`
	Status           looseString `json:"status"`
	LastError        looseString `json:"last_error"`
	Error            looseString `json:"error"`
	RestartsLastHour looseInt    `json:"restarts_last_hour"`
	LastChecked      timestamp   `json:"last_checked"`
	Logs             looseString `json:"logs"`
	Restarted        *bool       `json:"restarted"`
}

func (w *wireService) service(key string) Service {
	s := Service{
		Name:             string(w.Name),
		Status:           string(w.Status),
		LastError:        string(w.LastError),
		RestartsLastHour: int(w.RestartsLastHour),
		LastChecked:      string(w.LastChecked),
		Logs:             string(w.Logs),
	}
	if key != "" {
		s.Name = key
	}
	if s.LastError == "" {
		s.LastError = string(w.Error)
	}
	if w.Restarted != nil {
		s.Restarted = *w.Restarted
	}
	return s
}

// looseString takes a JSON string, null, or any other scalar verbatim.
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		return errors.New("expected a scalar")
	}
	*l = looseString(b)
	return nil
}

// looseInt takes a JSON number (fractions truncated), a numeric string, or null.
type looseInt int

func (l *looseInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Errorf("invalid counter %s", string(b))
	}
	// float64(math.MaxInt) rounds up to a power of two no int can hold.
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return errors.Errorf("counter out of range %s", string(b))
	}
	*l = looseInt(int(f))
	return nil
}

// timestamp takes a formatted string or epoch seconds.
type timestamp string

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = timestamp(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.Errorf("invalid timestamp %s", string(b))
	}
	*t = timestamp(FormatEpoch(f, CheckedLayout))
	return nil
}

// FormatEpoch renders epoch seconds in local time.
func FormatEpoch(sec float64, layout string) string {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).Format(layout)
}
