package quiz

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/pavelanni/flashquiz/internal/deck"
	"github.com/pavelanni/flashquiz/internal/model"
	"github.com/pavelanni/flashquiz/internal/speech"
)

var testCards = []model.Flashcard{
	{Question: "Capital of France?", Answer: "Paris"},
	{Question: "Largest planet?", Answer: "Jupiter"},
	{Question: "Color of the sky?", Answer: "blue"},
}

func startSession(t *testing.T, cards []model.Flashcard, policy model.UnavailablePolicy) Session {
	t.Helper()
	s, err := New(cards, policy).Start(time.Now())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func answer(t *testing.T, s Session, recognized string, listenErr error) (Session, Verdict) {
	t.Helper()
	s, err := s.BeginListening()
	if err != nil {
		t.Fatalf("BeginListening: %v", err)
	}
	s, v, err := s.Evaluate(recognized, listenErr)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return s, v
}

func checkCounters(t *testing.T, s Session) {
	t.Helper()
	if s.CorrectCount+s.IncorrectCount != s.CurrentIndex {
		t.Fatalf("correct %d + incorrect %d != index %d", s.CorrectCount, s.IncorrectCount, s.CurrentIndex)
	}
	if s.CurrentIndex > len(s.Cards) {
		t.Fatalf("index %d beyond %d cards", s.CurrentIndex, len(s.Cards))
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		recognized string
		expected   string
		want       bool
	}{
		{"Paris", "Paris", true},
		{"paris ", "Paris", true},
		{" PARIS", "Paris", true},
		{"Paris.", "Paris", false},
		{"", "Paris", false},
		{"   ", "Paris", false},
		{"the paris", "Paris", false},
		{"New York", "new york", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q vs %q", tt.recognized, tt.expected), func(t *testing.T) {
			if got := Matches(tt.recognized, tt.expected); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.recognized, tt.expected, got, tt.want)
			}
		})
	}
}

func TestThreeCardScenario(t *testing.T) {
	s := startSession(t, testCards, model.PolicyStall)

	var finished int
	steps := []struct {
		recognized string
		err        error
		want       model.Outcome
	}{
		{"paris", nil, model.OutcomeCorrect},
		{"Saturn", nil, model.OutcomeIncorrect},
		{"", speech.ErrNotUnderstood, model.OutcomeNotUnderstood},
	}
	for i, step := range steps {
		var v Verdict
		s, v = answer(t, s, step.recognized, step.err)
		checkCounters(t, s)
		if v.Outcome != step.want {
			t.Errorf("step %d outcome = %q, want %q", i, v.Outcome, step.want)
		}
		if !v.Advanced {
			t.Errorf("step %d did not advance", i)
		}
		if v.Finished {
			finished++
		}
	}

	if s.CorrectCount != 1 || s.IncorrectCount != 2 {
		t.Errorf("counters = %d/%d, want 1/2", s.CorrectCount, s.IncorrectCount)
	}
	if s.Phase != PhaseFinished || s.Running {
		t.Errorf("phase = %s running = %v, want finished and stopped", s.Phase, s.Running)
	}
	if finished != 1 {
		t.Errorf("finished reported %d times, want 1", finished)
	}
	if len(s.CorrectEntries) != 1 || len(s.IncorrectEntries) != 2 {
		t.Errorf("entries = %d/%d, want 1/2", len(s.CorrectEntries), len(s.IncorrectEntries))
	}
	if s.CorrectEntries[0] != "Q: Capital of France?\nA: Paris\n" {
		t.Errorf("unexpected correct entry %q", s.CorrectEntries[0])
	}
	if s.Answers[2].Outcome != model.OutcomeNotUnderstood || s.Answers[2].Position != 3 {
		t.Errorf("unexpected third answer %+v", s.Answers[2])
	}

	// No further evaluation once finished.
	if _, err := s.BeginListening(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BeginListening after finish = %v, want ErrInvalidTransition", err)
	}
}

func TestServiceUnavailableStalls(t *testing.T) {
	s := startSession(t, testCards, model.PolicyStall)
	unavailable := fmt.Errorf("%w: connection refused", speech.ErrServiceUnavailable)

	s, v := answer(t, s, "", unavailable)
	if v.Advanced || v.Outcome != "" {
		t.Errorf("verdict = %+v, want unscored and not advanced", v)
	}
	if s.CurrentIndex != 0 || s.CorrectCount != 0 || s.IncorrectCount != 0 {
		t.Errorf("session changed on unavailable service: %+v", s)
	}
	if !s.Stalled || s.Phase != PhaseDisplaying {
		t.Errorf("stalled = %v phase = %s, want stalled displaying", s.Stalled, s.Phase)
	}
	checkCounters(t, s)

	// Listening again on the same card recovers.
	s, v = answer(t, s, "Paris", nil)
	if v.Outcome != model.OutcomeCorrect || s.CurrentIndex != 1 || s.Stalled {
		t.Errorf("retry verdict = %+v index = %d stalled = %v", v, s.CurrentIndex, s.Stalled)
	}
}

func TestAdapterErrorStalls(t *testing.T) {
	s := startSession(t, testCards, model.PolicyStall)
	s, v := answer(t, s, "", &speech.AdapterError{Op: "capture", Err: speech.ErrWaitTimeout})
	if v.Advanced || s.CurrentIndex != 0 {
		t.Errorf("adapter error advanced the session: %+v", v)
	}
}

func TestIncorrectPolicyAdvances(t *testing.T) {
	s := startSession(t, testCards, model.PolicyIncorrect)
	s, v := answer(t, s, "", speech.ErrServiceUnavailable)
	if !v.Advanced || v.Outcome != model.OutcomeIncorrect {
		t.Errorf("verdict = %+v, want incorrect and advanced", v)
	}
	if s.IncorrectCount != 1 || s.CurrentIndex != 1 {
		t.Errorf("counters = %d index = %d", s.IncorrectCount, s.CurrentIndex)
	}
	checkCounters(t, s)
}

func TestTransitionsGuarded(t *testing.T) {
	s := New(testCards, "")

	if _, _, err := s.Evaluate("Paris", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Evaluate before start = %v", err)
	}
	if _, err := s.BeginListening(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BeginListening before start = %v", err)
	}

	s = startSession(t, testCards, "")
	if _, err := s.Start(time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start while running = %v", err)
	}
	if _, _, err := s.Evaluate("Paris", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Evaluate while displaying = %v", err)
	}

	if _, err := New(nil, "").Start(time.Now()); !errors.Is(err, ErrNoCards) {
		t.Errorf("Start without cards = %v", err)
	}
}

func TestStartAfterFinishResets(t *testing.T) {
	s := startSession(t, testCards[:1], "")
	s, _ = answer(t, s, "Paris", nil)
	if s.Phase != PhaseFinished {
		t.Fatalf("phase = %s, want finished", s.Phase)
	}
	gen := s.Generation

	s, err := s.Start(time.Now())
	if err != nil {
		t.Fatalf("Start after finish: %v", err)
	}
	if s.CurrentIndex != 0 || s.CorrectCount != 0 || len(s.CorrectEntries) != 0 || len(s.Answers) != 0 {
		t.Errorf("session not reset: %+v", s)
	}
	if s.Generation != gen+1 {
		t.Errorf("generation = %d, want %d", s.Generation, gen+1)
	}
}

func TestRestart(t *testing.T) {
	var cards []model.Flashcard
	for i := range 12 {
		cards = append(cards, model.Flashcard{Question: fmt.Sprintf("q%d", i), Answer: "a"})
	}
	d := deck.NewDeck(cards)

	for _, phase := range []string{"not started", "running", "finished"} {
		t.Run(phase, func(t *testing.T) {
			s := New(d.Cards(), "")
			switch phase {
			case "running":
				s = startSession(t, d.Cards(), "")
				s, _ = answer(t, s, "a", nil)
				s, _ = s.BeginListening()
			case "finished":
				s = startSession(t, d.Cards()[:1], "")
				s, _ = answer(t, s, "nope", nil)
			}
			gen := s.Generation

			r := s.Restart(d)
			if r.Phase != PhaseNotStarted || r.Running {
				t.Errorf("phase = %s running = %v", r.Phase, r.Running)
			}
			if r.CurrentIndex != 0 || r.CorrectCount != 0 || r.IncorrectCount != 0 {
				t.Errorf("counters not reset: %+v", r)
			}
			if len(r.CorrectEntries)+len(r.IncorrectEntries)+len(r.Answers) != 0 {
				t.Error("entries not cleared")
			}
			if r.Generation != gen+1 {
				t.Errorf("generation = %d, want %d", r.Generation, gen+1)
			}
			if !slices.Equal(r.Cards, d.Cards()) {
				t.Error("restart did not take the reshuffled deck order")
			}
		})
	}
}

func TestValueSemantics(t *testing.T) {
	s := startSession(t, testCards, "")
	before, _ := s.BeginListening()
	after, _, err := before.Evaluate("Paris", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(before.CorrectEntries) != 0 || before.CorrectCount != 0 {
		t.Error("Evaluate mutated the previous session value")
	}
	if len(after.CorrectEntries) != 1 {
		t.Error("new session missing entry")
	}
}

func TestSummary(t *testing.T) {
	s := startSession(t, testCards[:2], "")
	s, _ = answer(t, s, "Paris", nil)
	s, _ = answer(t, s, "Mars", nil)

	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sum := s.Summary(end, "cards.json")
	if sum.CorrectCount != 1 || sum.IncorrectCount != 1 || sum.Total() != 2 {
		t.Errorf("summary counts = %+v", sum)
	}
	if !sum.FinishedAt.Equal(end) || sum.DeckPath != "cards.json" {
		t.Errorf("summary metadata = %+v", sum)
	}
	if sum.Answers[1].Recognized != "Mars" {
		t.Errorf("recognized = %q, want 'Mars'", sum.Answers[1].Recognized)
	}
}
