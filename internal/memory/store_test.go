package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestAppendIgnoresBlankText(t *testing.T) {
	store := NewStore(10)
	store.Append(SpeakerUser, "")
	store.Append(SpeakerUser, "   \t\n")
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d turns", store.Len())
	}
}

func TestAppendDeduplicatesConsecutiveSameSpeaker(t *testing.T) {
	store := NewStore(10)
	store.Append(SpeakerInterviewer, "tell me about yourself")
	store.Append(SpeakerInterviewer, "  tell me about yourself  ")
	if store.Len() != 1 {
		t.Fatalf("expected 1 turn after duplicate append, got %d", store.Len())
	}

	// Same text from the other speaker is not a duplicate.
	store.Append(SpeakerUser, "tell me about yourself")
	if store.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", store.Len())
	}

	// Non-consecutive repeats are kept.
	store.Append(SpeakerInterviewer, "tell me about yourself")
	if store.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", store.Len())
	}
}

func TestHardCapEvictsOldestFirst(t *testing.T) {
	const limit = 5
	store := NewStore(limit)
	for i := 0; i < 20; i++ {
		store.Append(SpeakerUser, fmt.Sprintf("turn %d", i))
	}

	turns := store.All()
	if len(turns) != limit {
		t.Fatalf("expected %d turns, got %d", limit, len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", 15+i)
		if turn.Content != want {
			t.Fatalf("expected turn %q at index %d, got %q", want, i, turn.Content)
		}
	}
}

func TestRecentReturnsChronologicalTail(t *testing.T) {
	store := NewStore(100)
	for i := 0; i < 10; i++ {
		store.Append(SpeakerUser, fmt.Sprintf("turn %d", i))
	}

	recent := store.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(recent))
	}
	if recent[0].Content != "turn 7" || recent[2].Content != "turn 9" {
		t.Fatalf("unexpected tail: %v", recent)
	}

	if got := store.Recent(100); len(got) != 10 {
		t.Fatalf("expected all 10 turns for oversized n, got %d", len(got))
	}
	if got := store.Recent(0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	store := NewStore(10)
	store.Append(SpeakerUser, "original")

	recent := store.Recent(1)
	recent[0].Content = "mutated"

	if got := store.All()[0].Content; got != "original" {
		t.Fatalf("expected stored turn unchanged, got %q", got)
	}
}

func TestSummaryBlankIgnored(t *testing.T) {
	store := NewStore(10)
	store.SetSummary("useful context")
	store.SetSummary("   ")
	if got := store.Summary(); got != "useful context" {
		t.Fatalf("expected summary preserved, got %q", got)
	}
}

func TestPruneRecent(t *testing.T) {
	store := NewStore(100)
	for i := 0; i < 30; i++ {
		store.Append(SpeakerUser, fmt.Sprintf("turn %d", i))
	}

	store.PruneRecent(10)
	if store.Len() != 10 {
		t.Fatalf("expected 10 turns after prune, got %d", store.Len())
	}
	if got := store.All()[0].Content; got != "turn 20" {
		t.Fatalf("expected oldest retained turn 20, got %q", got)
	}

	store.PruneRecent(0)
	if store.Len() != 0 {
		t.Fatalf("expected empty store after prune to 0, got %d", store.Len())
	}
}

func TestClearReleasesEverything(t *testing.T) {
	store := NewStore(10)
	store.Append(SpeakerUser, "hello")
	store.SetSummary("summary")

	store.Clear()
	if store.Len() != 0 || store.Summary() != "" {
		t.Fatalf("expected cleared store, got %d turns, summary %q", store.Len(), store.Summary())
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := NewStore(DefaultMaxTurns)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Append(SpeakerInterviewer, fmt.Sprintf("goroutine %d turn %d", n, j))
				_ = store.Recent(5)
				_ = store.Summary()
			}
		}(i)
	}

	wg.Wait()
	if store.Len() == 0 || store.Len() > DefaultMaxTurns {
		t.Fatalf("unexpected turn count after concurrent appends: %d", store.Len())
	}
}
