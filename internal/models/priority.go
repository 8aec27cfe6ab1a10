package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority is the human label for a SABnzbd priority level
type Priority string

const (
	PriorityForce  Priority = "force"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Canonical label/code table. SABnzbd documentation has historically listed
// force as either 2 or 3; this codebase fixes on the 2/1/0/-1 table and
// rejects anything outside it rather than guessing.
var priorityCodes = map[Priority]int{
	PriorityForce:  2,
	PriorityHigh:   1,
	PriorityNormal: 0,
	PriorityLow:    -1,
}

// ErrUnknownPriority is returned for labels or codes outside the canonical table
var ErrUnknownPriority = fmt.Errorf("unknown priority")

// ParsePriority converts a human label to a Priority
func ParsePriority(label string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := priorityCodes[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, label)
	}
	return p, nil
}

// Code returns the SABnzbd numeric code for a priority label
func (p Priority) Code() (int, error) {
	code, ok := priorityCodes[p]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, string(p))
	}
	return code, nil
}

// PriorityFromCode converts a SABnzbd numeric code back to its label
func PriorityFromCode(code int) (Priority, error) {
	for p, c := range priorityCodes {
		if c == code {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: code %d", ErrUnknownPriority, code)
}

// NormalizePriority maps a raw priority value from a SABnzbd queue slot to a
// label. Slots report either the label ("High") or the numeric code ("1");
// anything unrecognized (including the -100 "Default" code) falls back to
// normal so a malformed slot never blocks reconciliation.
func NormalizePriority(raw string) Priority {
	if p, err := ParsePriority(raw); err == nil {
		return p
	}
	if code, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		if p, err := PriorityFromCode(code); err == nil {
			return p
		}
	}
	return PriorityNormal
}
