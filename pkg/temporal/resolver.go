package temporal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/go-lineage/pkg/types"
)

var (
	// ErrNoDecision is returned when a resolver cannot produce a choice, for
	// example after repeated invalid answers at an interactive prompt.
	ErrNoDecision = errors.New("no conflict decision")
	// ErrUnknownStrategy is returned by NewResolver for unsupported names.
	ErrUnknownStrategy = errors.New("unknown conflict strategy")
)

// Strategy names a built-in conflict resolution policy.
type Strategy string

const (
	StrategyPreferFirst    Strategy = "prefer-first"
	StrategyPreferNonEmpty Strategy = "prefer-non-empty"
	StrategyPreferLongest  Strategy = "prefer-longest"
	StrategyInteractive    Strategy = "interactive"
)

// DefaultStrategy never blocks.
const DefaultStrategy = StrategyPreferNonEmpty

// Resolver picks one of two institution values reported for the same edge.
// The returned value must be first or second.
type Resolver interface {
	Resolve(ctx context.Context, id types.EdgeIdentity, first, second string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, id types.EdgeIdentity, first, second string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, id types.EdgeIdentity, first, second string) (string, error) {
	return f(ctx, id, first, second)
}

// PreferFirst keeps the value seen first.
func PreferFirst() Resolver {
	return ResolverFunc(func(_ context.Context, _ types.EdgeIdentity, first, _ string) (string, error) {
		return first, nil
	})
}

// PreferNonEmpty keeps whichever value is non-empty, falling back to the first.
func PreferNonEmpty() Resolver {
	return ResolverFunc(func(_ context.Context, _ types.EdgeIdentity, first, second string) (string, error) {
		if first == "" {
			return second, nil
		}
		return first, nil
	})
}

// PreferLongest keeps the longer value. Ties keep the first.
func PreferLongest() Resolver {
	return ResolverFunc(func(_ context.Context, _ types.EdgeIdentity, first, second string) (string, error) {
		if utf8.RuneCountInString(second) > utf8.RuneCountInString(first) {
			return second, nil
		}
		return first, nil
	})
}

// InteractiveResolver asks an operator to choose between the two values.
type InteractiveResolver struct {
	in          *bufio.Reader
	out         io.Writer
	maxAttempts int
}

// NewInteractiveResolver prompts on out and reads answers from in. Invalid
// answers are re-prompted up to maxAttempts times before giving up with
// ErrNoDecision.
func NewInteractiveResolver(in io.Reader, out io.Writer, maxAttempts int) *InteractiveResolver {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &InteractiveResolver{
		in:          bufio.NewReader(in),
		out:         out,
		maxAttempts: maxAttempts,
	}
}

// Resolve implements Resolver.
func (r *InteractiveResolver) Resolve(ctx context.Context, id types.EdgeIdentity, first, second string) (string, error) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		fmt.Fprintf(r.out, "[%s] 1 or 2?\n1: %s\n2: %s\n", id, first, second)

		line, err := r.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		switch answer {
		case "1":
			return first, nil
		case "2":
			return second, nil
		}

		if err != nil {
			// No more input: asking again cannot help.
			return "", fmt.Errorf("%w for %s: %v", ErrNoDecision, id, err)
		}
		fmt.Fprintf(r.out, "invalid answer %q, expected 1 or 2 (attempt %d of %d)\n", answer, attempt, r.maxAttempts)
	}
	return "", fmt.Errorf("%w for %s after %d invalid answers", ErrNoDecision, id, r.maxAttempts)
}

// NewResolver returns the built-in resolver for strategy. in and out are only
// used by the interactive strategy.
func NewResolver(strategy Strategy, in io.Reader, out io.Writer, maxAttempts int) (Resolver, error) {
	switch strategy {
	case "", StrategyPreferNonEmpty:
		return PreferNonEmpty(), nil
	case StrategyPreferFirst:
		return PreferFirst(), nil
	case StrategyPreferLongest:
		return PreferLongest(), nil
	case StrategyInteractive:
		return NewInteractiveResolver(in, out, maxAttempts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
