package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Mode selects how strictly Validate treats missing fields.
type Mode int

const (
	// Full requires title, amount and date.
	Full Mode = iota
	// Partial only checks the fields present in the input.
	Partial
)

const (
	MsgTitle  = "Title is required and must be at least 3 characters."
	MsgAmount = "Amount is required and must be a number greater than 0."
	MsgDate   = "Date is required and must be a valid date."

	minTitleLength = 3

	// Latest millisecond timestamp accepted (+100,000,000 days).
	maxTimestampMillis = 8.64e15
	// Earliest millisecond timestamp every backend can store:
	// 4714-11-24T00:00:00Z BC, the lower bound of PostgreSQL timestamptz.
	minTimestampMillis = -210866803200000
)

// dateLayouts are tried in order when a date arrives as text. Layouts without
// a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Field is one optional input value. Present is true whenever the key was
// supplied, including an explicit JSON null.
type Field struct {
	Present bool
	Value   any
}

// UnmarshalJSON records presence; encoding/json only calls it for keys that exist.
// Numbers are kept as json.Number so values beyond float64 range reach the
// validator instead of failing the decode.
func (f *Field) UnmarshalJSON(b []byte) error {
	f.Present = true
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(&f.Value)
}

// Set returns a present field holding v.
func Set(v any) Field {
	return Field{Present: true, Value: v}
}

// Input is a raw, untrusted expense record (full or partial).
type Input struct {
	Title    Field `json:"title"`
	Amount   Field `json:"amount"`
	Date     Field `json:"date"`
	Category Field `json:"category"`
}

// Validate maps a raw input to a normalized payload or to a *ValidationError
// listing one message per invalid field. It never returns both.
func Validate(in Input, mode Mode) (Payload, error) {
	var (
		p    Payload
		errs []string
	)

	if mode == Full || in.Title.Present {
		if title, ok := parseTitle(in.Title); ok {
			p.Title = &title
		} else {
			errs = append(errs, MsgTitle)
		}
	}

	if mode == Full || in.Amount.Present {
		if amount, ok := parseAmount(in.Amount); ok {
			p.Amount = &amount
		} else {
			errs = append(errs, MsgAmount)
		}
	}

	if mode == Full || in.Date.Present {
		if date, ok := parseDate(in.Date); ok {
			p.Date = &date
		} else {
			errs = append(errs, MsgDate)
		}
	}

	// A new expense always carries a category key, null when none was given.
	if in.Category.Present || mode == Full {
		p.CategorySet = true
		p.Category = normalizeCategory(in.Category.Value)
	}

	if len(errs) > 0 {
		return Payload{}, &ValidationError{Errors: errs}
	}
	return p, nil
}

func parseTitle(f Field) (string, bool) {
	if !f.Present {
		return "", false
	}
	s, ok := f.Value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	// Length is counted in UTF-16 code units, so one emoji counts twice.
	if len(utf16.Encode([]rune(s))) < minTitleLength {
		return "", false
	}
	return s, true
}

func parseAmount(f Field) (float64, bool) {
	if !f.Present {
		return 0, false
	}

	var amount float64
	switch v := f.Value.(type) {
	case float64, json.Number:
		amount, _ = number(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		amount = parsed
	default:
		return 0, false
	}

	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, false
	}
	return amount, true
}

func parseDate(f Field) (time.Time, bool) {
	if !f.Present {
		return time.Time{}, false
	}

	switch v := f.Value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return normalizeTime(t), true
			}
		}
		return time.Time{}, false
	case float64, json.Number:
		ms, _ := number(v)
		if math.IsNaN(ms) || ms > maxTimestampMillis || ms < minTimestampMillis {
			return time.Time{}, false
		}
		return normalizeTime(time.UnixMilli(int64(ms))), true
	default:
		return time.Time{}, false
	}
}

// normalizeTime keeps dates comparable across backends: UTC, millisecond precision.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// normalizeCategory turns falsy values into nil and everything else into trimmed text.
func normalizeCategory(v any) *string {
	var s string
	switch c := v.(type) {
	case string:
		s = strings.TrimSpace(c)
	case float64, json.Number:
		n, _ := number(c)
		switch {
		case n == 0 || math.IsNaN(n):
			return nil
		case math.IsInf(n, 1):
			s = "Infinity"
		case math.IsInf(n, -1):
			s = "-Infinity"
		default:
			s = strconv.FormatFloat(n, 'f', -1, 64)
		}
	case bool:
		if !c {
			return nil
		}
		s = strconv.FormatBool(c)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

// number converts a decoded JSON number to float64. Magnitudes beyond float64
// range become ±Inf, which every caller treats as not finite.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil && !math.IsInf(f, 0) {
			return math.NaN(), false
		}
		return f, true
	default:
		return math.NaN(), false
	}
}
