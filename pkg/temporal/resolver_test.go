package temporal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/soundprediction/go-lineage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = types.EdgeIdentity{Source: "A", Target: "B", Year: 2000}

func TestBuiltinResolvers(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		first    string
		second   string
		want     string
	}{
		{name: "first keeps first", strategy: StrategyPreferFirst, first: "X", second: "Y", want: "X"},
		{name: "first keeps empty first", strategy: StrategyPreferFirst, first: "", second: "Y", want: ""},
		{name: "non-empty takes second when first empty", strategy: StrategyPreferNonEmpty, first: "", second: "Y", want: "Y"},
		{name: "non-empty keeps first otherwise", strategy: StrategyPreferNonEmpty, first: "X", second: "Y", want: "X"},
		{name: "default is non-empty", strategy: "", first: "", second: "Y", want: "Y"},
		{name: "longest picks longer", strategy: StrategyPreferLongest, first: "MIT", second: "Massachusetts Institute of Technology", want: "Massachusetts Institute of Technology"},
		{name: "longest counts runes", strategy: StrategyPreferLongest, first: "Zürich", second: "Zurich", want: "Zürich"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.strategy, nil, nil, 0)
			require.NoError(t, err)

			got, err := r.Resolve(context.Background(), testIdentity, tt.first, tt.second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownStrategy(t *testing.T) {
	_, err := NewResolver("coin-flip", nil, nil, 0)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestInteractiveResolver(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "choose first", input: "1\n", want: "X"},
		{name: "choose second", input: "2\n", want: "Y"},
		{name: "answer without newline", input: "2", want: "Y"},
		{name: "retry after invalid answer", input: "3\n 2 \n", want: "Y"},
		{name: "give up after repeated invalid answers", input: "a\nb\nc\n1\n", wantErr: true},
		{name: "no input", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := NewInteractiveResolver(strings.NewReader(tt.input), &out, 3)

			got, err := r.Resolve(context.Background(), testIdentity, "X", "Y")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoDecision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "[A|B|2000] 1 or 2?")
		})
	}
}

func TestInteractiveResolverHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewInteractiveResolver(strings.NewReader("1\n"), &bytes.Buffer{}, 3)
	_, err := r.Resolve(ctx, testIdentity, "X", "Y")
	assert.ErrorIs(t, err, context.Canceled)
}
