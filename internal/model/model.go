package model

import "time"

// Flashcard is one question/answer pair shown to the user.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Outcome records how a single answer was scored.
type Outcome string

const (
	OutcomeCorrect       Outcome = "correct"
	OutcomeIncorrect     Outcome = "incorrect"
	OutcomeNotUnderstood Outcome = "not_understood"
)

// Answer is one evaluated card in a quiz session.
type Answer struct {
	Position   int     `json:"position"`
	Question   string  `json:"question"`
	Expected   string  `json:"expected"`
	Recognized string  `json:"recognized"`
	Outcome    Outcome `json:"outcome"`
}

// Summary is what a finished session hands to the result persister.
type Summary struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	DeckPath         string
	CorrectCount     int
	IncorrectCount   int
	CorrectEntries   []string
	IncorrectEntries []string
	Answers          []Answer
}

// Total returns the number of cards evaluated in the session.
func (s Summary) Total() int {
	return s.CorrectCount + s.IncorrectCount
}

// QuizResult is a completed quiz as kept in the history database.
type QuizResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DeckPath   string    `json:"deck_path"`
	Correct    int       `json:"correct"`
	Incorrect  int       `json:"incorrect"`
	Total      int       `json:"total"`
	Answers    []Answer  `json:"answers,omitempty"`
}

// Accuracy returns the share of correct answers in percent.
func (r QuizResult) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) * 100 / float64(r.Total)
}

// UnavailablePolicy decides what a failed recognition request does to the session.
type UnavailablePolicy string

const (
	// PolicyStall keeps the session on the same question without scoring it.
	PolicyStall UnavailablePolicy = "stall"
	// PolicyIncorrect scores the question as incorrect and moves on.
	PolicyIncorrect UnavailablePolicy = "incorrect"
)

// Timing holds the delays used to stage the display and listening phases.
type Timing struct {
	ListenDelay   time.Duration // question shown -> listening, first question
	AdvanceDelay  time.Duration // answer evaluated -> next question shown
	RelistenDelay time.Duration // next question shown -> listening
}

// DefaultTiming matches the pacing of the desktop version: one second to read
// the question, one more before the next card, and a 100ms gap before listening.
func DefaultTiming() Timing {
	return Timing{
		ListenDelay:   time.Second,
		AdvanceDelay:  time.Second,
		RelistenDelay: 100 * time.Millisecond,
	}
}

// ListenConfig holds microphone capture limits.
type ListenConfig struct {
	Timeout     time.Duration // wait for speech to begin
	PhraseLimit time.Duration // maximum length of the captured phrase
}

// QuizConfig holds runtime quiz parameters set via CLI flags.
type QuizConfig struct {
	Timing            Timing
	Listen            ListenConfig
	UnavailablePolicy UnavailablePolicy
	SpeakQuestions    bool
	Shuffle           bool
}

// HistoryStats aggregates all stored results.
type HistoryStats struct {
	Quizzes   int     `json:"quizzes"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}
