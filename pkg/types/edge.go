package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidYear is returned when a year is not a four digit integer.
var ErrInvalidYear = errors.New("year is not a four digit integer")

// Relation records which side of the relationship reported an edge.
type Relation string

const (
	// RelationAdvised is reported on the student's page, pointing at an advisor.
	RelationAdvised Relation = "advised"
	// RelationSupervised is reported on the advisor's page, listing a student.
	RelationSupervised Relation = "supervised"
)

// RawEdge is an advisor -> student edge as emitted by the builder, before any
// validation. Year and Institution are the student's graduation data.
type RawEdge struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Year        string   `json:"year"`
	Institution string   `json:"institution"`
	Relation    Relation `json:"relation"`
}

// Edge is a validated advisor -> student edge.
type Edge struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Year        int    `json:"year"`
	Institution string `json:"institution"`
}

// Key returns the unordered endpoint pair of the edge.
func (e Edge) Key() EdgeKey {
	return NewEdgeKey(e.Source, e.Target)
}

// Identity returns the directed (source, target, year) triple of the edge.
func (e Edge) Identity() EdgeIdentity {
	return EdgeIdentity{Source: e.Source, Target: e.Target, Year: e.Year}
}

// String serializes the edge as a tab separated tuple. Canonical edge order is
// the lexicographic order of this form.
func (e Edge) String() string {
	return strings.Join([]string{e.Source, e.Target, FormatYear(e.Year), e.Institution}, "\t")
}

// Raw converts the edge back to its unvalidated form.
func (e Edge) Raw() RawEdge {
	return RawEdge{
		Source:      e.Source,
		Target:      e.Target,
		Year:        FormatYear(e.Year),
		Institution: e.Institution,
	}
}

// EdgeKey is the sorted pair of endpoint codes. It is only used to group
// reports of the same relationship; edges keep their own direction.
type EdgeKey struct {
	A string
	B string
}

// NewEdgeKey builds the key for the pair regardless of argument order.
func NewEdgeKey(u, v string) EdgeKey {
	if v < u {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

func (k EdgeKey) String() string {
	return k.A + "-" + k.B
}

// EdgeIdentity identifies a directed edge within a year.
type EdgeIdentity struct {
	Source string
	Target string
	Year   int
}

func (id EdgeIdentity) String() string {
	return fmt.Sprintf("%s|%s|%s", id.Source, id.Target, FormatYear(id.Year))
}

// ParseYear parses a four digit year.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
		}
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	return year, nil
}

// FormatYear renders a year with four digits.
func FormatYear(year int) string {
	return fmt.Sprintf("%04d", year)
}
