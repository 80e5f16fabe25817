package common

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ExpirationTimer represents a timer with progress tracking and ETA calculation
type ExpirationTimer struct {
	out            io.Writer
	start          time.Time
	deadline       time.Duration
	lastNoticed    time.Time
	noticeInterval time.Duration
	maxTrials      int
	current        int
	interval       int
}

// NewExpirationTimer creates a new ExpirationTimer that reports to out
func NewExpirationTimer(out io.Writer, deadline time.Duration, minutes int, maxTrials int, div int) *ExpirationTimer {
	start := time.Now()
	return &ExpirationTimer{
		out:            out,
		start:          start,
		deadline:       deadline,
		lastNoticed:    start,
		noticeInterval: time.Duration(minutes) * time.Minute,
		maxTrials:      maxTrials,
		current:        0,
		interval:       max(1, maxTrials/div),
	}
}

// Expired checks if the timer has expired
func (et *ExpirationTimer) Expired() bool {
	return time.Since(et.start) >= et.deadline
}

// Elapsed returns the elapsed time since start
func (et *ExpirationTimer) Elapsed() time.Duration {
	return time.Since(et.start)
}

// Current is the number of trials carried out so far
func (et *ExpirationTimer) Current() int {
	return et.current
}

// EstimatedEndTime calculates the estimated end time based on current progress
func (et *ExpirationTimer) EstimatedEndTime() time.Time {
	if et.current == 0 {
		return et.start.Add(et.deadline)
	}

	avgPerTrial := et.Elapsed() / time.Duration(et.current)
	totalEstimate := avgPerTrial * time.Duration(et.maxTrials)
	if totalEstimate > et.deadline {
		totalEstimate = et.deadline
	}
	return et.start.Add(totalEstimate)
}

// ETA returns a formatted string showing estimated time of arrival
func (et *ExpirationTimer) ETA() string {
	estimatedEnd := et.EstimatedEndTime()
	now := time.Now()
	diff := estimatedEnd.Sub(now)

	var format string
	if estimatedEnd.Format("2006-01-02") != now.Format("2006-01-02") {
		format = "01-02 15:04"
	} else if diff.Hours() >= 1 {
		format = "15:04"
	} else {
		format = "15:04:05"
	}

	eta := estimatedEnd.Format(format)
	return fmt.Sprintf("%s (%s)", eta, Remaining(diff))
}

// Remaining formats a duration as 1h02m, 3m04s or 5s.
func Remaining(diff time.Duration) string {
	totalSeconds := int(diff.Seconds())
	if totalSeconds < 0 {
		totalSeconds = 0
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// CarriedOut updates the progress and returns true if should notify
func (et *ExpirationTimer) CarriedOut(amount int) bool {
	current := et.current
	et.current += amount

	shouldNotify := (time.Since(et.lastNoticed) >= et.noticeInterval) ||
		et.current >= et.maxTrials ||
		current == 0 ||
		(et.current/et.interval != current/et.interval)

	if shouldNotify {
		et.lastNoticed = time.Now()
		return true
	}

	return false
}

// Heading prints the header of the progress table
func (et *ExpirationTimer) Heading() {
	columns := []Column{
		{Type: Trials},
		{Type: Cells},
		{Type: MaxCV},
		{Type: Unsettled},
		{Type: ETA},
	}
	et.printHeading(columns)
}

// Summary prints one progress line
func (et *ExpirationTimer) Summary(cells int, maxCV float64, unsettled int) {
	columns := []Column{
		{Type: Trials, IntVal: et.current},
		{Type: Cells, IntVal: cells},
		{Type: MaxCV, Float64Val: maxCV * 100.0},
		{Type: Unsettled, IntVal: unsettled},
		{Type: ETA, StringVal: et.ETA()},
	}
	et.printSummary(columns)
}

func (et *ExpirationTimer) printHeading(columns []Column) {
	headings := make([]string, len(columns))
	lines := make([]string, len(columns))

	for i, col := range columns {
		headings[i] = col.Heading()
		lines[i] = col.Line()
	}

	fmt.Fprintln(et.out, strings.Join(headings, " "))
	fmt.Fprintln(et.out, strings.Join(lines, " "))
}

func (et *ExpirationTimer) printSummary(columns []Column) {
	formatted := make([]string, len(columns))

	for i, col := range columns {
		formatted[i] = col.Format()
	}

	fmt.Fprintln(et.out, strings.Join(formatted, " "))
}

// ColumnType represents the type of column
type ColumnType int

const (
	Trials ColumnType = iota
	Cells
	MaxCV
	Unsettled
	ETA
)

// Column represents a table column with formatting
type Column struct {
	Type       ColumnType
	Float64Val float64
	IntVal     int
	StringVal  string
}

// Label returns the column label
func (c *Column) Label() string {
	switch c.Type {
	case Trials:
		return "Trials"
	case Cells:
		return "Cells"
	case MaxCV:
		return "MaxCV[%]"
	case Unsettled:
		return "Unsettled"
	case ETA:
		return "ETA"
	default:
		return ""
	}
}

// Width returns the column width
func (c *Column) Width() int {
	labelLen := len(c.Label())
	var minWidth int

	switch c.Type {
	case Trials:
		minWidth = 7
	case Cells:
		minWidth = 6
	case MaxCV:
		minWidth = 8
	case Unsettled:
		minWidth = 9
	case ETA:
		minWidth = 18
	default:
		minWidth = labelLen
	}

	if labelLen > minWidth {
		return labelLen
	}
	return minWidth
}

// Heading returns the formatted column heading
func (c *Column) Heading() string {
	label := c.Label()
	width := c.Width()

	// Center align the heading
	padding := width - len(label)
	leftPad := padding / 2
	rightPad := padding - leftPad

	return strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad)
}

// Line returns the separator line for the column
func (c *Column) Line() string {
	return strings.Repeat("-", c.Width())
}

// Format returns the formatted column value
func (c *Column) Format() string {
	width := c.Width()

	switch c.Type {
	case Trials, Cells, Unsettled:
		return fmt.Sprintf("%*d", width, c.IntVal)
	case MaxCV:
		return fmt.Sprintf("%*.1f", width, c.Float64Val)
	case ETA:
		return fmt.Sprintf("%-*s", width, c.StringVal)
	default:
		return fmt.Sprintf("%*s", width, "")
	}
}
