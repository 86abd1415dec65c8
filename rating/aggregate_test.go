package rating

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/muthu-raja18/QuickServe-sub001/request"
)

func TestApply_IncrementsOneBucket(t *testing.T) {
	for stars := MinStars; stars <= MaxStars; stars++ {
		before := Aggregate{ProviderID: "p", Breakdown: Breakdown{2, 0, 1, 3, 1}, TotalReviews: 7, CompletedJobs: 9, Version: 4}
		after, err := Apply(before, stars)
		if err != nil {
			t.Fatalf("apply %d: %v", stars, err)
		}
		for s := MinStars; s <= MaxStars; s++ {
			want := before.Breakdown.Count(s)
			if s == stars {
				want++
			}
			if after.Breakdown.Count(s) != want {
				t.Errorf("apply %d: bucket %d = %d, want %d", stars, s, after.Breakdown.Count(s), want)
			}
		}
		if after.TotalReviews != before.TotalReviews+1 {
			t.Errorf("apply %d: total %d, want %d", stars, after.TotalReviews, before.TotalReviews+1)
		}
		if after.CompletedJobs != before.CompletedJobs+1 {
			t.Errorf("apply %d: completed jobs not incremented", stars)
		}
		if after.Version != before.Version {
			t.Errorf("apply %d: version must be left to the store", stars)
		}
	}
}

func TestApply_RejectsOutOfRange(t *testing.T) {
	for _, stars := range []int{0, 6, -1} {
		if _, err := Apply(Aggregate{}, stars); !errors.Is(err, ErrInvalidStars) {
			t.Errorf("stars %d: expected ErrInvalidStars, got %v", stars, err)
		}
	}
}

func TestApply_WorkedExample(t *testing.T) {
	agg := Aggregate{Breakdown: Breakdown{0, 0, 1, 2, 1}}
	agg.TotalReviews = agg.Breakdown.Total()
	agg.Average = Average(agg.Breakdown)

	next, err := Apply(agg, 5)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Breakdown != (Breakdown{0, 0, 1, 2, 2}) {
		t.Fatalf("unexpected breakdown %v", next.Breakdown)
	}
	if next.TotalReviews != 5 || next.Average != 4.2 {
		t.Fatalf("expected 5 reviews averaging 4.2, got %d / %v", next.TotalReviews, next.Average)
	}
}

func TestAverage_Rounding(t *testing.T) {
	cases := []struct {
		name string
		b    Breakdown
		want float64
	}{
		{"empty", Breakdown{}, 0},
		{"3.75 rounds up", Breakdown{0, 0, 1, 3, 0}, 3.8},
		{"3.25 rounds up", Breakdown{1, 0, 0, 3, 0}, 3.3},
		{"4.333 rounds down", Breakdown{0, 0, 0, 2, 1}, 4.3},
		{"exact", Breakdown{0, 0, 0, 0, 7}, 5},
		{"1.05 rounds up", Breakdown{19, 1, 0, 0, 0}, 1.1},
	}
	for _, tc := range cases {
		if got := Average(tc.b); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func completedRequest(id, providerID string, stars int) request.ServiceRequest {
	s := stars
	return request.ServiceRequest{ID: id, ProviderID: providerID, Status: request.StatusCompleted, Rating: &s}
}

func TestReconcile_MatchesIncrementalFold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(60)
		ratings := make([]int, n)
		for i := range ratings {
			ratings[i] = MinStars + rng.Intn(MaxStars)
		}

		folded := Aggregate{ProviderID: "p"}
		source := make([]request.ServiceRequest, 0, n+2)
		for i, stars := range ratings {
			var err error
			folded, err = Apply(folded, stars)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			source = append(source, completedRequest("r"+strconv.Itoa(i), "p", stars))
		}
		// Noise the reconcile must ignore.
		source = append(source,
			completedRequest("other", "q", 1),
			request.ServiceRequest{ID: "open", ProviderID: "p", Status: request.StatusAccepted},
		)
		rng.Shuffle(len(source), func(i, j int) { source[i], source[j] = source[j], source[i] })

		rebuilt := Reconcile("p", source)
		if !SameContent(folded, rebuilt) {
			t.Fatalf("round %d: fold %+v != reconcile %+v", round, folded, rebuilt)
		}
		if again := Reconcile("p", source); again != rebuilt {
			t.Fatalf("round %d: reconcile is not idempotent", round)
		}

		// Order independence of the fold itself.
		rng.Shuffle(len(ratings), func(i, j int) { ratings[i], ratings[j] = ratings[j], ratings[i] })
		refolded := Aggregate{ProviderID: "p"}
		for _, stars := range ratings {
			refolded, _ = Apply(refolded, stars)
		}
		if !SameContent(folded, refolded) {
			t.Fatalf("round %d: fold depends on order", round)
		}

		if folded.TotalReviews == 0 {
			if folded.Average != 0 {
				t.Fatalf("round %d: empty aggregate must average 0", round)
			}
			continue
		}
		diff := math.Abs(folded.Average*float64(folded.TotalReviews) - float64(folded.Breakdown.Points()))
		if diff > 0.05*float64(folded.TotalReviews)+1e-9 {
			t.Fatalf("round %d: average %v too far from %d/%d", round, folded.Average, folded.Breakdown.Points(), folded.TotalReviews)
		}
	}
}

func TestReconcile_CountsUnratedJobs(t *testing.T) {
	source := []request.ServiceRequest{
		completedRequest("a", "p", 4),
		{ID: "b", ProviderID: "p", Status: request.StatusCompleted},
	}
	agg := Reconcile("p", source)
	if agg.CompletedJobs != 2 || agg.TotalReviews != 1 || agg.Average != 4 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
}
