// Package payload encodes and parses the ASCII heart rate payload exchanged
// between the sensing and display nodes.
//
// Three schemas exist:
//
//	Bare:   "<hr>"                        e.g. "72"
//	CSV:    "<hr>,<touch>,<motor>"        e.g. "72,1,0"
//	Tagged: "HR:<hr>,HYD:<0|1>"           e.g. "HR:85,HYD:1"
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format selects the payload schema.
type Format string

const (
	Bare   Format = "bare"
	CSV    Format = "csv"
	Tagged Format = "tagged"
)

// MaxHeartRate bounds parsed heart rates; larger values are treated as noise.
const MaxHeartRate = 999

// ErrMalformed is returned for payloads that match no schema.
var ErrMalformed = errors.New("malformed payload")

// Message is one decoded payload.
type Message struct {
	HeartRate    int
	Touch        bool // CSV only
	MotorForward bool // CSV only
	Hydrated     bool // Tagged only
	Format       Format
}

// Encode renders m in format f. Unknown formats fall back to Tagged.
func Encode(f Format, m Message) []byte {
	hr := m.HeartRate
	if hr < 0 {
		hr = 0
	}

	switch f {
	case Bare:
		return []byte(strconv.Itoa(hr))
	case CSV:
		return []byte(fmt.Sprintf("%d,%d,%d", hr, bit(m.Touch), bit(m.MotorForward)))
	default:
		return []byte(fmt.Sprintf("HR:%d,HYD:%d", hr, bit(m.Hydrated)))
	}
}

// Parse decodes a payload, detecting its schema. Surrounding whitespace and
// trailing NUL bytes are ignored. Any payload that does not match a schema
// exactly returns an error wrapping ErrMalformed.
func Parse(data []byte) (Message, error) {
	s := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	if s == "" {
		return Message{}, fmt.Errorf("%w: empty", ErrMalformed)
	}

	switch {
	case strings.HasPrefix(s, "HR:"):
		return parseTagged(s)
	case strings.Contains(s, ","):
		return parseCSV(s)
	default:
		hr, err := parseHeartRate(s)
		if err != nil {
			return Message{}, err
		}
		return Message{HeartRate: hr, Format: Bare}, nil
	}
}

// parseTagged parses "HR:<hr>,HYD:<0|1>". Extra keys are ignored.
func parseTagged(s string) (Message, error) {
	m := Message{Format: Tagged}
	var haveHR, haveHYD bool

	for _, field := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return Message{}, fmt.Errorf("%w: field %q has no separator", ErrMalformed, field)
		}
		switch strings.TrimSpace(key) {
		case "HR":
			hr, err := parseHeartRate(value)
			if err != nil {
				return Message{}, err
			}
			m.HeartRate = hr
			haveHR = true
		case "HYD":
			flag, err := parseFlag(value)
			if err != nil {
				return Message{}, err
			}
			m.Hydrated = flag
			haveHYD = true
		}
	}

	if !haveHR || !haveHYD {
		return Message{}, fmt.Errorf("%w: %q needs HR and HYD", ErrMalformed, s)
	}
	return m, nil
}

// parseCSV parses "<hr>,<touch>[,<motor>]". A missing motor field reads as backward.
func parseCSV(s string) (Message, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Message{}, fmt.Errorf("%w: expected 2 or 3 comma-separated values, got %d", ErrMalformed, len(parts))
	}

	hr, err := parseHeartRate(parts[0])
	if err != nil {
		return Message{}, err
	}
	touch, err := parseFlag(parts[1])
	if err != nil {
		return Message{}, err
	}

	m := Message{HeartRate: hr, Touch: touch, Format: CSV}
	if len(parts) == 3 {
		if m.MotorForward, err = parseFlag(parts[2]); err != nil {
			return Message{}, err
		}
	}
	return m, nil
}

func parseHeartRate(s string) (int, error) {
	hr, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: heart rate %q: %v", ErrMalformed, s, err)
	}
	if hr < 0 || hr > MaxHeartRate {
		return 0, fmt.Errorf("%w: heart rate %d out of range", ErrMalformed, hr)
	}
	return hr, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: flag %q", ErrMalformed, s)
	}
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
