// Package protocol implements the comma-delimited text frame exchanged with
// the throttle controller firmware in both directions.
//
//	<max>,<current>\n
//
// max is 0-100. current is 0-100 or NoThrottle (-1), which tells the
// firmware to fall back to the physical throttle.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// NoThrottle is the wire value for "no override / throttle off".
	NoThrottle = -1
	// MinThrottle is the lowest throttle percentage.
	MinThrottle = 0
	// MaxThrottle is the highest throttle percentage.
	MaxThrottle = 100
)

// ErrMalformedFrame is returned by Decode for any payload that is not a
// two-field numeric frame.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Frame is one throttle message. Inbound frames may carry fractional values,
// outbound frames are always encoded as integers.
type Frame struct {
	Max     float64
	Current float64
}

// NewFrame builds an outbound frame from integer throttle values.
func NewFrame(max, current int) Frame {
	return Frame{Max: float64(max), Current: float64(current)}
}

// String renders the frame without the trailing newline, for logging.
func (f Frame) String() string {
	return strings.TrimSuffix(string(Encode(f)), "\n")
}

// Encode formats f as "<max>,<current>\n".
func Encode(f Frame) []byte {
	buf := make([]byte, 0, 10)
	buf = strconv.AppendInt(buf, int64(math.Round(f.Max)), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(math.Round(f.Current)), 10)
	buf = append(buf, '\n')
	return buf
}

// Decode parses one notification payload. Leading and trailing whitespace,
// including the newline terminator, is ignored.
func Decode(data []byte) (Frame, error) {
	if !utf8.Valid(data) {
		return Frame{}, fmt.Errorf("%w: invalid utf-8", ErrMalformedFrame)
	}
	text := string(bytes.TrimSpace(data))

	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return Frame{}, fmt.Errorf("%w: expected 2 fields, got %d in %q", ErrMalformedFrame, len(parts), text)
	}

	max, err := parseField(parts[0])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: max: %v", ErrMalformedFrame, err)
	}
	current, err := parseField(parts[1])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: current: %v", ErrMalformedFrame, err)
	}
	return Frame{Max: max, Current: current}, nil
}

func parseField(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// WireCurrent maps a desired instantaneous throttle onto its wire value.
// Zero is never sent: the firmware cannot tell it apart from "no command
// received", so anything at or below zero becomes NoThrottle.
func WireCurrent(v int) int {
	if v <= MinThrottle {
		return NoThrottle
	}
	return v
}

// Clamp limits v to the 0-100 throttle range.
func Clamp(v int) int {
	switch {
	case v < MinThrottle:
		return MinThrottle
	case v > MaxThrottle:
		return MaxThrottle
	default:
		return v
	}
}
