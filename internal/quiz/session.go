// Package quiz holds the quiz session state machine. A Session is a value:
// every transition takes the current session and returns the next one, so the
// owner replaces its copy in one step and never shares mutable state.
package quiz

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/flashquiz/internal/model"
	"github.com/pavelanni/flashquiz/internal/speech"
)

// Phase is the position of a session in its lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseDisplaying
	PhaseListening
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseDisplaying:
		return "displaying"
	case PhaseListening:
		return "listening"
	case PhaseFinished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNoCards is returned when starting a session without flashcards.
	ErrNoCards = errors.New("no flashcards to quiz")
)

// Shuffler reorders a card source; *deck.Deck satisfies it.
type Shuffler interface {
	Shuffle()
	Cards() []model.Flashcard
}

// Session is one run of the quiz.
type Session struct {
	Generation       int
	Phase            Phase
	CurrentIndex     int
	CorrectCount     int
	IncorrectCount   int
	Running          bool
	Stalled          bool // last listen failed without scoring; same card is still current
	CorrectEntries   []string
	IncorrectEntries []string
	Answers          []model.Answer
	Cards            []model.Flashcard
	StartedAt        time.Time

	policy model.UnavailablePolicy
}

// Verdict describes the result of one answer evaluation.
type Verdict struct {
	Outcome    model.Outcome // empty when the answer was not scored
	Question   string
	Expected   string
	Recognized string
	Err        error
	Advanced   bool
	Finished   bool // set exactly once per session, on the transition to PhaseFinished
}

// New creates a session that has not started yet.
func New(cards []model.Flashcard, policy model.UnavailablePolicy) Session {
	if policy == "" {
		policy = model.PolicyStall
	}
	return Session{
		Phase:  PhaseNotStarted,
		Cards:  slices.Clone(cards),
		policy: policy,
	}
}

// Start begins a session at the first card.
func (s Session) Start(at time.Time) (Session, error) {
	if s.Phase != PhaseNotStarted && s.Phase != PhaseFinished {
		return s, fmt.Errorf("start from %s: %w", s.Phase, ErrInvalidTransition)
	}
	if len(s.Cards) == 0 {
		return s, ErrNoCards
	}
	return Session{
		Generation: s.Generation + 1,
		Phase:      PhaseDisplaying,
		Running:    true,
		Cards:      s.Cards,
		StartedAt:  at,
		policy:     s.policy,
	}, nil
}

// BeginListening moves from showing the current card to waiting for its answer.
func (s Session) BeginListening() (Session, error) {
	if s.Phase != PhaseDisplaying || s.CurrentIndex >= len(s.Cards) {
		return s, fmt.Errorf("listen from %s: %w", s.Phase, ErrInvalidTransition)
	}
	next := s.clone()
	next.Phase = PhaseListening
	return next, nil
}

// Evaluate scores the outcome of a listen call against the current card.
// listenErr is the error returned by the speech adapter, if any.
func (s Session) Evaluate(recognized string, listenErr error) (Session, Verdict, error) {
	if s.Phase != PhaseListening || !s.Running || s.CurrentIndex >= len(s.Cards) {
		return s, Verdict{}, fmt.Errorf("evaluate from %s: %w", s.Phase, ErrInvalidTransition)
	}

	card := s.Cards[s.CurrentIndex]
	v := Verdict{
		Question:   card.Question,
		Expected:   card.Answer,
		Recognized: recognized,
		Err:        listenErr,
	}

	switch {
	case listenErr == nil && Matches(recognized, card.Answer):
		v.Outcome = model.OutcomeCorrect
	case listenErr == nil:
		v.Outcome = model.OutcomeIncorrect
	case errors.Is(listenErr, speech.ErrNotUnderstood):
		v.Outcome = model.OutcomeNotUnderstood
		v.Recognized = ""
	case s.policy == model.PolicyIncorrect:
		v.Outcome = model.OutcomeIncorrect
		v.Recognized = ""
	default:
		next := s.clone()
		next.Phase = PhaseDisplaying
		next.Stalled = true
		return next, v, nil
	}

	next := s.clone()
	next.record(card, v)
	next.CurrentIndex++
	next.Stalled = false
	v.Advanced = true

	if next.CurrentIndex >= len(next.Cards) {
		next.Phase = PhaseFinished
		next.Running = false
		v.Finished = true
	} else {
		next.Phase = PhaseDisplaying
	}
	return next, v, nil
}

// Restart reshuffles the cards and returns a fresh, not-started session.
// It is valid from any phase.
func (s Session) Restart(cards Shuffler) Session {
	cards.Shuffle()
	return Session{
		Generation: s.Generation + 1,
		Phase:      PhaseNotStarted,
		Cards:      cards.Cards(),
		policy:     s.policy,
	}
}

// Current returns the card being shown, if any.
func (s Session) Current() (model.Flashcard, bool) {
	if s.Phase == PhaseNotStarted || s.CurrentIndex >= len(s.Cards) {
		return model.Flashcard{}, false
	}
	return s.Cards[s.CurrentIndex], true
}

// Summary builds the record handed to the result persister.
func (s Session) Summary(finishedAt time.Time, deckPath string) model.Summary {
	return model.Summary{
		StartedAt:        s.StartedAt,
		FinishedAt:       finishedAt,
		DeckPath:         deckPath,
		CorrectCount:     s.CorrectCount,
		IncorrectCount:   s.IncorrectCount,
		CorrectEntries:   slices.Clone(s.CorrectEntries),
		IncorrectEntries: slices.Clone(s.IncorrectEntries),
		Answers:          slices.Clone(s.Answers),
	}
}

func (s *Session) record(card model.Flashcard, v Verdict) {
	entry := Entry(card)
	if v.Outcome == model.OutcomeCorrect {
		s.CorrectCount++
		s.CorrectEntries = append(s.CorrectEntries, entry)
	} else {
		s.IncorrectCount++
		s.IncorrectEntries = append(s.IncorrectEntries, entry)
	}
	s.Answers = append(s.Answers, model.Answer{
		Position:   s.CurrentIndex + 1,
		Question:   card.Question,
		Expected:   card.Answer,
		Recognized: v.Recognized,
		Outcome:    v.Outcome,
	})
}

func (s Session) clone() Session {
	s.CorrectEntries = slices.Clone(s.CorrectEntries)
	s.IncorrectEntries = slices.Clone(s.IncorrectEntries)
	s.Answers = slices.Clone(s.Answers)
	return s
}

// Entry formats a transcript entry for the answer logs.
func Entry(card model.Flashcard) string {
	return fmt.Sprintf("Q: %s\nA: %s\n", card.Question, card.Answer)
}

// normalize lowercases and trims surrounding whitespace.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Matches reports whether a recognized answer equals the expected one,
// ignoring case and surrounding whitespace only. Punctuation counts.
func Matches(recognized, expected string) bool {
	return normalize(recognized) == normalize(expected)
}
