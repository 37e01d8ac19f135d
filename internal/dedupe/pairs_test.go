package dedupe

import (
	"testing"

	"github.com/mmynk/cardscan/internal/models"
)

func TestFindPairs_SkipsDismissed(t *testing.T) {
	records := []*models.Contact{
		{ID: "x", Email: "same@x.com"},
		{ID: "y", Email: "SAME@x.com"},
	}

	if got := FindPairs(records, nil); len(got) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(got))
	}

	dismissed := map[string]struct{}{PairKey("y", "x"): {}}
	if got := FindPairs(records, dismissed); len(got) != 0 {
		t.Errorf("expected dismissed pair to be skipped, got %+v", got)
	}
}

func TestReport_ResolveRemovesEveryPairWithEitherMergedID(t *testing.T) {
	a := &models.Contact{ID: "A"}
	b := &models.Contact{ID: "B"}
	c := &models.Contact{ID: "C"}
	d := &models.Contact{ID: "D"}
	e := &models.Contact{ID: "E"}

	r := &Report{Pairs: []models.DuplicatePair{
		{Key: PairKey("A", "B"), First: a, Second: b},
		{Key: PairKey("A", "C"), First: a, Second: c},
		{Key: PairKey("B", "C"), First: b, Second: c},
		{Key: PairKey("D", "B"), First: d, Second: b},
		{Key: PairKey("D", "E"), First: d, Second: e},
	}}

	// Merge (A, B): keep A, delete B.
	r.Resolve("A", "B")

	if len(r.Pairs) != 1 {
		t.Fatalf("expected 1 remaining pair, got %d: %+v", len(r.Pairs), r.Pairs)
	}
	if r.Pairs[0].Key != "D:E" {
		t.Errorf("remaining pair = %s, want D:E", r.Pairs[0].Key)
	}
}

func TestReport_ResolveSharedEmailTriangle(t *testing.T) {
	records := []*models.Contact{
		{ID: "a", Email: "same@x.com"},
		{ID: "b", Email: "same@x.com"},
		{ID: "c", Email: "same@x.com"},
	}
	r := &Report{Pairs: FindPairs(records, nil)}
	if len(r.Pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(r.Pairs))
	}

	r.Resolve("a", "b")
	for _, p := range r.Pairs {
		if p.Involves("a") || p.Involves("b") {
			t.Errorf("pending pair still references a merged id: %s", p.Key)
		}
	}
}

func TestReport_Dismiss(t *testing.T) {
	a := &models.Contact{ID: "A"}
	b := &models.Contact{ID: "B"}
	r := &Report{Pairs: []models.DuplicatePair{{Key: PairKey("A", "B"), First: a, Second: b}}}
	r.Dismiss(PairKey("B", "A"))
	if len(r.Pairs) != 0 {
		t.Errorf("expected no pairs, got %+v", r.Pairs)
	}
}
