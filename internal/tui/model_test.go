package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/flashquiz/internal/deck"
	"github.com/pavelanni/flashquiz/internal/i18n"
	"github.com/pavelanni/flashquiz/internal/model"
	"github.com/pavelanni/flashquiz/internal/quiz"
	"github.com/pavelanni/flashquiz/internal/speech"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type heard struct {
	text string
	err  error
}

type fakeListener struct {
	answers   []heard
	calls     int
	ctxErrs   []error
	spoken    []string
	speakErrs []error
}

func (f *fakeListener) Listen(ctx context.Context, _, _ time.Duration) (string, error) {
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return "", &speech.AdapterError{Op: "capture", Err: ctx.Err()}
	}
	if f.calls >= len(f.answers) {
		return "", speech.ErrNotUnderstood
	}
	a := f.answers[f.calls]
	f.calls++
	return a.text, a.err
}

func (f *fakeListener) Speak(ctx context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	f.speakErrs = append(f.speakErrs, ctx.Err())
	return ctx.Err()
}

type fakeSaver struct {
	saved []model.Summary
	err   error
}

func (s *fakeSaver) Save(sum model.Summary) error {
	s.saved = append(s.saved, sum)
	return s.err
}

var testCards = []model.Flashcard{
	{Question: "Capital of France?", Answer: "Paris"},
	{Question: "Largest planet?", Answer: "Jupiter"},
	{Question: "2+2?", Answer: "4"},
}

func newTestModel(l Listener, s Saver) Model {
	cfg := model.QuizConfig{
		Timing:            model.DefaultTiming(),
		Listen:            model.ListenConfig{Timeout: 3 * time.Second, PhraseLimit: 3 * time.Second},
		UnavailablePolicy: model.PolicyStall,
	}
	return New(deck.NewDeck(testCards), l, s, cfg, i18n.NewTranslator("en"))
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func keyPress(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// answerCurrent fires the scheduled listen and feeds its result back.
func answerCurrent(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	m, cmd := update(t, m, listenMsg{gen: m.session.Generation})
	if m.session.Phase != quiz.PhaseListening {
		t.Fatalf("phase = %s after listen tick, want listening", m.session.Phase)
	}
	if cmd == nil {
		t.Fatal("expected a listen command")
	}
	return update(t, m, cmd())
}

func TestFullRun(t *testing.T) {
	l := &fakeListener{answers: []heard{
		{text: " paris "},
		{text: "Saturn"},
		{err: speech.ErrNotUnderstood},
	}}
	s := &fakeSaver{}
	m := newTestModel(l, s)

	if !strings.Contains(m.View(), "Press 'Start Quiz' to begin") {
		t.Errorf("initial view missing start prompt:\n%s", m.View())
	}

	m, cmd := update(t, m, keyPress("s"))
	if cmd == nil || m.session.Phase != quiz.PhaseDisplaying {
		t.Fatalf("start: phase = %s, cmd = %v", m.session.Phase, cmd)
	}
	if !strings.Contains(m.listening, "Listening in 1s") {
		t.Errorf("listening label = %q", m.listening)
	}

	m, _ = answerCurrent(t, m)
	if m.session.CorrectCount != 1 || m.status != "✅ Correct!" {
		t.Fatalf("after first answer: correct=%d status=%q", m.session.CorrectCount, m.status)
	}
	m, _ = update(t, m, showQuestionMsg{gen: m.session.Generation})

	m, _ = answerCurrent(t, m)
	if m.session.IncorrectCount != 1 || !strings.Contains(m.status, "Correct: ") {
		t.Fatalf("after second answer: incorrect=%d status=%q", m.session.IncorrectCount, m.status)
	}
	m, _ = update(t, m, showQuestionMsg{gen: m.session.Generation})
	if !strings.Contains(m.listening, "100ms") {
		t.Errorf("relisten label = %q, want the relisten delay", m.listening)
	}

	m, cmd = answerCurrent(t, m)
	if m.session.Phase != quiz.PhaseFinished {
		t.Fatalf("phase = %s, want finished", m.session.Phase)
	}
	if m.heard != "⚠️ Couldn't recognize speech." {
		t.Errorf("heard label = %q", m.heard)
	}
	if m.question != "All done!" {
		t.Errorf("question label = %q, want 'All done!'", m.question)
	}
	if cmd == nil {
		t.Fatal("expected save command after the last card")
	}
	m, _ = update(t, m, cmd())

	if len(s.saved) != 1 {
		t.Fatalf("saved %d times, want 1", len(s.saved))
	}
	sum := s.saved[0]
	if sum.CorrectCount != 1 || sum.IncorrectCount != 2 || len(sum.Answers) != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if m.note != "Results saved." {
		t.Errorf("note = %q", m.note)
	}

	view := m.View()
	for _, want := range []string{"Correct: 1", "Incorrect: 2", "Game over!"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRestartDropsStaleResult(t *testing.T) {
	l := &fakeListener{answers: []heard{{text: "Paris"}}}
	m := newTestModel(l, &fakeSaver{})

	m, _ = update(t, m, keyPress("s"))
	oldGen := m.session.Generation
	m, listen := update(t, m, listenMsg{gen: oldGen})

	m, _ = update(t, m, keyPress("r"))
	if m.session.Phase != quiz.PhaseNotStarted || m.status != "Game Restarted!" {
		t.Fatalf("after restart: phase=%s status=%q", m.session.Phase, m.status)
	}

	// The in-flight listen completes after the restart.
	m, cmd := update(t, m, listen())
	if cmd != nil {
		t.Error("stale result should not schedule anything")
	}
	if m.session.CorrectCount != 0 || m.session.IncorrectCount != 0 {
		t.Errorf("stale result changed counters: %+v", m.session)
	}
	if len(l.ctxErrs) != 1 || !errors.Is(l.ctxErrs[0], context.Canceled) {
		t.Errorf("listen context not cancelled on restart: %v", l.ctxErrs)
	}
}

func TestStaleTicksIgnored(t *testing.T) {
	m := newTestModel(&fakeListener{}, nil)
	m, _ = update(t, m, keyPress("s"))
	oldGen := m.session.Generation
	m, _ = update(t, m, keyPress("r"))

	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"listen", listenMsg{gen: oldGen}},
		{"show question", showQuestionMsg{gen: oldGen}},
		{"heard", heardMsg{gen: oldGen, text: "Paris"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := update(t, m, tt.msg)
			if cmd != nil || next.session.Phase != quiz.PhaseNotStarted {
				t.Errorf("stale %s message acted: phase=%s cmd=%v", tt.name, next.session.Phase, cmd)
			}
		})
	}
}

func TestUnavailableStallsAndListenAgain(t *testing.T) {
	l := &fakeListener{answers: []heard{
		{err: fmt.Errorf("%w: connection refused", speech.ErrServiceUnavailable)},
		{text: "Paris"},
	}}
	m := newTestModel(l, nil)
	m, _ = update(t, m, keyPress("s"))

	m, cmd := answerCurrent(t, m)
	if cmd != nil {
		t.Error("stalled card should not advance")
	}
	if !m.session.Stalled || m.session.Phase != quiz.PhaseDisplaying || m.session.CurrentIndex != 0 {
		t.Fatalf("expected stall on first card, got %+v", m.session)
	}
	if m.session.CorrectCount+m.session.IncorrectCount != 0 {
		t.Errorf("stall changed counters")
	}
	if !strings.Contains(m.status, "unavailable") {
		t.Errorf("status = %q", m.status)
	}
	if !m.keys.Listen.Enabled() {
		t.Error("listen-again key should be enabled")
	}

	m, cmd = update(t, m, keyPress("l"))
	if m.session.Phase != quiz.PhaseListening || cmd == nil {
		t.Fatalf("listen again: phase=%s cmd=%v", m.session.Phase, cmd)
	}
	m, _ = update(t, m, cmd())
	if m.session.CorrectCount != 1 || m.session.CurrentIndex != 1 {
		t.Errorf("retry not scored: %+v", m.session)
	}
}

func TestListenAgainIgnoredUnlessStalled(t *testing.T) {
	m := newTestModel(&fakeListener{}, nil)
	m, _ = update(t, m, keyPress("s"))
	m, cmd := update(t, m, keyPress("l"))
	if cmd != nil || m.session.Phase != quiz.PhaseDisplaying {
		t.Errorf("l acted without a stall: phase=%s", m.session.Phase)
	}
}

func TestStartIgnoredWhileRunning(t *testing.T) {
	m := newTestModel(&fakeListener{}, nil)
	m, _ = update(t, m, keyPress("s"))
	gen := m.session.Generation
	m, cmd := update(t, m, keyPress("s"))
	if cmd != nil || m.session.Generation != gen {
		t.Errorf("second start changed the session: gen %d -> %d", gen, m.session.Generation)
	}
}

func TestExitCancelsListen(t *testing.T) {
	l := &fakeListener{}
	m := newTestModel(l, nil)
	m, _ = update(t, m, keyPress("s"))
	m, listen := update(t, m, listenMsg{gen: m.session.Generation})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("exit should quit the program")
	}

	listen()
	if len(l.ctxErrs) != 1 || l.ctxErrs[0] == nil {
		t.Errorf("listen context not cancelled on exit: %v", l.ctxErrs)
	}
}

func TestSaveFailureShown(t *testing.T) {
	l := &fakeListener{answers: []heard{{text: "Paris"}, {text: "Jupiter"}, {text: "4"}}}
	s := &fakeSaver{err: errors.New("disk full")}
	m := newTestModel(l, s)
	m, _ = update(t, m, keyPress("s"))

	var cmd tea.Cmd
	for range testCards {
		m, cmd = answerCurrent(t, m)
		if m.session.Phase != quiz.PhaseFinished {
			m, _ = update(t, m, showQuestionMsg{gen: m.session.Generation})
		}
	}
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.note, "disk full") {
		t.Errorf("note = %q, want save error", m.note)
	}
	if m.session.CorrectCount != 3 {
		t.Errorf("correct = %d, want 3", m.session.CorrectCount)
	}
}

func TestSpokenQuestion(t *testing.T) {
	l := &fakeListener{answers: []heard{{text: "Paris"}}}
	m := newTestModel(l, nil)
	m.cfg.SpeakQuestions = true

	m, speak := update(t, m, keyPress("s"))
	if speak == nil {
		t.Fatal("expected speak command")
	}
	if m.listening != "🔊 Reading the question..." {
		t.Errorf("listening label = %q", m.listening)
	}

	m, cmd := update(t, m, speak())
	if len(l.spoken) != 1 || l.spoken[0] != "Capital of France?" {
		t.Errorf("spoken = %v", l.spoken)
	}
	if cmd == nil {
		t.Fatal("expected listen to be scheduled after playback")
	}
	if !strings.Contains(m.listening, "Listening in 1s") {
		t.Errorf("listening label = %q", m.listening)
	}
	if m.cancelSpeak != nil {
		t.Error("playback context should be released after speaking")
	}

	m, _ = answerCurrent(t, m)
	if m.session.CorrectCount != 1 {
		t.Errorf("correct = %d, want 1", m.session.CorrectCount)
	}
}

func TestStopCancelsPlayback(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"restart", keyPress("r")},
		{"exit", keyPress("q")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeListener{}
			m := newTestModel(l, nil)
			m.cfg.SpeakQuestions = true

			m, speak := update(t, m, keyPress("s"))
			m, _ = update(t, m, tt.key)

			// Playback runs after the key press; its context is already cancelled.
			msg := speak()
			if len(l.speakErrs) != 1 || !errors.Is(l.speakErrs[0], context.Canceled) {
				t.Fatalf("playback context not cancelled: %v", l.speakErrs)
			}
			if _, cmd := update(t, m, msg); cmd != nil {
				t.Error("cancelled playback should not schedule a listen")
			}
		})
	}
}
