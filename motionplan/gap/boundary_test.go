package gap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"
)

func TestBoundaries(t *testing.T) {
	ranges := []float64{1, 1, 4, 4, 4, 1, 5, 0.5, 0.5}
	test.That(t, Boundaries(ranges, 1.0), test.ShouldResemble, []Boundary{
		{Index: 1, Kind: Start},
		{Index: 5, Kind: End},
		{Index: 5, Kind: Start},
		{Index: 7, Kind: End},
	})

	// Jumps at or below the threshold are not edges.
	test.That(t, Boundaries([]float64{1, 2, 3, 2, 1}, 1.0), test.ShouldBeEmpty)
	test.That(t, Boundaries(nil, 1.0), test.ShouldBeEmpty)
	test.That(t, Boundaries([]float64{3}, 1.0), test.ShouldBeEmpty)
}

func TestReconcile(t *testing.T) {
	s := func(i int) Boundary { return Boundary{Index: i, Kind: Start} }
	e := func(i int) Boundary { return Boundary{Index: i, Kind: End} }

	for _, tc := range []struct {
		name     string
		events   []Boundary
		expected []Interval
	}{
		{
			name:     "simple pair",
			events:   []Boundary{s(2), e(6)},
			expected: []Interval{{2, 6}},
		},
		{
			name:     "only starts",
			events:   []Boundary{s(2), s(4)},
			expected: nil,
		},
		{
			name:     "only ends",
			events:   []Boundary{e(2), e(4)},
			expected: nil,
		},
		{
			name:     "shared index closes then opens",
			events:   []Boundary{s(1), e(5), s(5), e(7)},
			expected: []Interval{{1, 5}, {5, 7}},
		},
		{
			name:     "shared index given start first",
			events:   []Boundary{s(1), s(5), e(5), e(7)},
			expected: []Interval{{1, 5}, {5, 7}},
		},
		{
			name:     "leading end opens at zero",
			events:   []Boundary{e(3), s(5), e(8)},
			expected: []Interval{{0, 3}, {5, 8}},
		},
		{
			name:     "second leading end dropped",
			events:   []Boundary{e(3), e(4), s(5), e(8)},
			expected: []Interval{{0, 3}, {5, 8}},
		},
		{
			name:     "trailing start closes at last index",
			events:   []Boundary{s(1), e(3), s(6)},
			expected: []Interval{{1, 3}, {6, 9}},
		},
		{
			name:     "stacked starts pair the innermost",
			events:   []Boundary{s(1), s(3), e(6)},
			expected: []Interval{{3, 6}},
		},
		{
			name:     "surplus end dropped",
			events:   []Boundary{s(1), e(3), e(5), s(6), e(8)},
			expected: []Interval{{1, 3}, {6, 8}},
		},
		{
			name:     "stacked trailing starts",
			events:   []Boundary{e(2), s(4), s(6)},
			expected: []Interval{{0, 2}, {6, 9}},
		},
		{
			name:     "unsorted input",
			events:   []Boundary{e(8), s(5), e(3)},
			expected: []Interval{{0, 3}, {5, 8}},
		},
		{
			name:     "out of range boundaries ignored",
			events:   []Boundary{e(0), s(9), s(2), e(4)},
			expected: []Interval{{2, 4}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Reconcile(tc.events, 9)
			test.That(t, got, test.ShouldResemble, tc.expected)
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	const lastIndex = 40
	pattern := []Kind{Start, End, End, Start, Start, End, Start, End, End, Start}
	for offset := 0; offset < len(pattern); offset++ {
		var events []Boundary
		for i := 0; i < 12; i++ {
			events = append(events, Boundary{Index: 3*i + offset%3, Kind: pattern[(i+offset)%len(pattern)]})
		}
		once := Reconcile(events, lastIndex)
		twice := Reconcile(Events(once), lastIndex)
		test.That(t, cmp.Diff(once, twice, cmpopts.EquateEmpty()), test.ShouldBeEmpty)

		for i, iv := range once {
			test.That(t, iv.Start, test.ShouldBeLessThan, iv.End)
			if i > 0 {
				test.That(t, iv.Start, test.ShouldBeGreaterThanOrEqualTo, once[i-1].End)
			}
		}
	}

	scanned := Reconcile(Boundaries([]float64{1, 5, 5, 1, 1, 6, 0.5, 4, 4}, 1.0), 8)
	test.That(t, Reconcile(Events(scanned), 8), test.ShouldResemble, scanned)
}

func TestKindString(t *testing.T) {
	test.That(t, Start.String(), test.ShouldEqual, "start")
	test.That(t, End.String(), test.ShouldEqual, "end")
	test.That(t, Kind(7).String(), test.ShouldEqual, "Kind(7)")
}
