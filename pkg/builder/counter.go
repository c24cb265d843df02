package builder

import (
	"fmt"
	"sync"
)

// Category selects which synthetic code sequence a placeholder draws from.
type Category string

const (
	// CategoryAdvisor prefixes placeholders for unlinked advisors.
	CategoryAdvisor Category = "adv"
	// CategoryStudent prefixes placeholders for unlinked students.
	CategoryStudent Category = "stu"
)

// Counters holds the next number of each synthetic code sequence.
type Counters struct {
	Advisor int `json:"advisor"`
	Student int `json:"student"`
}

// SyntheticCounter allocates placeholder codes such as adv1 and stu7. Each
// category counts independently and never hands out the same number twice.
type SyntheticCounter struct {
	mu   sync.Mutex
	next Counters
}

// NewSyntheticCounter returns a counter that continues from start. Zero values
// start at 1.
func NewSyntheticCounter(start Counters) *SyntheticCounter {
	if start.Advisor < 1 {
		start.Advisor = 1
	}
	if start.Student < 1 {
		start.Student = 1
	}
	return &SyntheticCounter{next: start}
}

// Next allocates the next code of the category.
func (c *SyntheticCounter) Next(category Category) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	switch category {
	case CategoryAdvisor:
		n = c.next.Advisor
		c.next.Advisor++
	case CategoryStudent:
		n = c.next.Student
		c.next.Student++
	default:
		panic(fmt.Sprintf("builder: unknown synthetic category %q", category))
	}
	return fmt.Sprintf("%s%d", category, n)
}

// State returns the next values of both sequences. Passing it to
// NewSyntheticCounter resumes allocation without reuse.
func (c *SyntheticCounter) State() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
