// Package tui is the terminal front end of the quiz. It owns the single live
// quiz.Session and runs every blocking speech call inside a tea.Cmd, so the
// event loop keeps redrawing while the microphone is open.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/flashquiz/internal/i18n"
	"github.com/pavelanni/flashquiz/internal/model"
	"github.com/pavelanni/flashquiz/internal/quiz"
	"github.com/pavelanni/flashquiz/internal/speech"
)

// Listener is the speech side of the quiz; *speech.Service satisfies it.
type Listener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error)
	Speak(ctx context.Context, text string) error
}

// Saver persists a finished session; *results.Persister satisfies it.
type Saver interface {
	Save(sum model.Summary) error
}

// Deck is the card source used for restarts.
type Deck interface {
	quiz.Shuffler
	Path() string
}

// Messages carry the session generation they were scheduled for. Update
// drops any message whose generation no longer matches, which is how stale
// timers and late listen results from a restarted session are ignored.
type (
	showQuestionMsg struct{ gen int }
	listenMsg       struct{ gen int }
	heardMsg        struct {
		gen  int
		text string
		err  error
	}
	spokenMsg struct {
		gen   int
		delay time.Duration
		err   error
	}
	savedMsg struct {
		gen int
		err error
	}
)

// Model is the bubbletea model for one quiz window.
type Model struct {
	session quiz.Session
	deck    Deck
	speech  Listener
	saver   Saver
	cfg     model.QuizConfig
	tr      *i18n.Translator
	now     func() time.Time

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	question  string
	heard     string
	listening string
	status    string
	note      string
	width     int

	cancelListen context.CancelFunc
	cancelSpeak  context.CancelFunc
}

// New builds the model with the deck's current order as the first session.
func New(d Deck, l Listener, s Saver, cfg model.QuizConfig, tr *i18n.Translator) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = listeningStyle

	m := Model{
		session: quiz.New(d.Cards(), cfg.UnavailablePolicy),
		deck:    d,
		speech:  l,
		saver:   s,
		cfg:     cfg,
		tr:      tr,
		now:     time.Now,
		keys:    newKeyMap(tr),
		help:    help.New(),
		spinner: sp,
	}
	m.resetLabels()
	return m
}

// Session returns the current session value.
func (m Model) Session() quiz.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case showQuestionMsg:
		if msg.gen != m.session.Generation || m.session.Phase != quiz.PhaseDisplaying {
			return m, nil
		}
		return m, m.showQuestion(m.cfg.Timing.RelistenDelay)

	case spokenMsg:
		if msg.gen != m.session.Generation || m.session.Phase != quiz.PhaseDisplaying ||
			errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		if msg.err != nil {
			slog.Warn("speak question", "error", msg.err)
		}
		if m.cancelSpeak != nil {
			m.cancelSpeak()
			m.cancelSpeak = nil
		}
		m.listening = m.tr.Td("ListeningIn", map[string]any{"Delay": msg.delay.String()})
		return m, listenAfter(m.session.Generation, msg.delay)

	case listenMsg:
		if msg.gen != m.session.Generation || m.session.Phase != quiz.PhaseDisplaying {
			return m, nil
		}
		return m.beginListening()

	case heardMsg:
		if msg.gen != m.session.Generation || m.session.Phase != quiz.PhaseListening {
			slog.Debug("dropping stale listen result", "gen", msg.gen, "current", m.session.Generation)
			return m, nil
		}
		return m.evaluate(msg)

	case savedMsg:
		if msg.gen != m.session.Generation {
			return m, nil
		}
		if msg.err != nil {
			m.note = m.tr.Td("SaveFailed", map[string]any{"Error": msg.err.Error()})
		} else {
			m.note = m.tr.T("ResultsSaved")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Exit):
		m.stopListening()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Restart):
		m.stopListening()
		m.session = m.session.Restart(m.deck)
		m.resetLabels()
		m.status = m.tr.T("GameRestarted")
		m.keys.Listen.SetEnabled(false)
		return m, nil

	case key.Matches(msg, m.keys.Start):
		if m.session.Running {
			return m, nil
		}
		next, err := m.session.Start(m.now())
		if err != nil {
			m.status = m.tr.Td("StatusError", map[string]any{"Error": err.Error()})
			return m, nil
		}
		m.session = next
		m.status = ""
		m.note = ""
		return m, m.showQuestion(m.cfg.Timing.ListenDelay)

	case key.Matches(msg, m.keys.Listen):
		if !m.session.Stalled || m.session.Phase != quiz.PhaseDisplaying {
			return m, nil
		}
		m.status = ""
		return m.beginListening()
	}
	return m, nil
}

// showQuestion puts the current card on screen and schedules the listen
// after delay. With spoken questions on, the question is read out first and
// the listen is scheduled when playback ends.
func (m *Model) showQuestion(delay time.Duration) tea.Cmd {
	card, ok := m.session.Current()
	if !ok {
		return nil
	}
	m.question = card.Question
	m.heard = m.tr.Td("YourAnswer", map[string]any{"Text": ""})
	m.listening = m.tr.Td("ListeningIn", map[string]any{"Delay": delay.String()})

	if !m.cfg.SpeakQuestions {
		return listenAfter(m.session.Generation, delay)
	}
	m.listening = m.tr.T("Speaking")
	if m.cancelSpeak != nil {
		m.cancelSpeak()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSpeak = cancel
	return m.speak(ctx, card.Question, delay)
}

func (m Model) beginListening() (tea.Model, tea.Cmd) {
	next, err := m.session.BeginListening()
	if err != nil {
		slog.Debug("begin listening", "error", err)
		return m, nil
	}
	m.session = next
	m.listening = m.tr.T("ListeningNow")
	m.keys.Listen.SetEnabled(false)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelListen = cancel
	return m, m.listen(ctx)
}

func (m Model) evaluate(msg heardMsg) (tea.Model, tea.Cmd) {
	m.stopListening()
	next, v, err := m.session.Evaluate(msg.text, msg.err)
	if err != nil {
		slog.Debug("evaluate", "error", err)
		return m, nil
	}
	m.session = next
	m.listening = ""

	switch v.Outcome {
	case model.OutcomeCorrect:
		m.heard = m.tr.Td("YourAnswer", map[string]any{"Text": v.Recognized})
		m.status = m.tr.T("StatusCorrect")
	case model.OutcomeIncorrect:
		if v.Err != nil {
			m.heard = m.tr.Td("YourAnswer", map[string]any{"Text": ""})
		} else {
			m.heard = m.tr.Td("YourAnswer", map[string]any{"Text": v.Recognized})
		}
		m.status = m.tr.Td("StatusIncorrect", map[string]any{"Answer": v.Expected})
	case model.OutcomeNotUnderstood:
		m.heard = m.tr.T("SpeechNotUnderstood")
		m.status = m.tr.T("StatusNotUnderstood")
	default:
		slog.Warn("listen failed", "error", v.Err)
		if errors.Is(v.Err, speech.ErrServiceUnavailable) {
			m.status = m.tr.T("StatusUnavailable")
		} else {
			m.status = m.tr.Td("StatusError", map[string]any{"Error": v.Err.Error()})
		}
		m.listening = m.tr.T("ListenAgainHint")
		m.keys.Listen.SetEnabled(true)
		return m, nil
	}

	if v.Finished {
		m.question = m.tr.T("AllDone")
		m.status = m.tr.T("GameOver")
		m.note = m.tr.T("SavingResults")
		return m, m.save(m.session.Summary(m.now(), m.deck.Path()))
	}
	return m, showQuestionAfter(m.session.Generation, m.cfg.Timing.AdvanceDelay)
}

// stopListening cancels any in-flight listen or question playback.
func (m *Model) stopListening() {
	if m.cancelListen != nil {
		m.cancelListen()
		m.cancelListen = nil
	}
	if m.cancelSpeak != nil {
		m.cancelSpeak()
		m.cancelSpeak = nil
	}
}

func (m *Model) resetLabels() {
	m.question = m.tr.T("PressStart")
	m.heard = m.tr.Td("YourAnswer", map[string]any{"Text": ""})
	m.listening = ""
	m.status = ""
	m.note = ""
}

func (m Model) listen(ctx context.Context) tea.Cmd {
	gen := m.session.Generation
	l := m.speech
	timeout, phrase := m.cfg.Listen.Timeout, m.cfg.Listen.PhraseLimit
	return func() tea.Msg {
		text, err := l.Listen(ctx, timeout, phrase)
		return heardMsg{gen: gen, text: text, err: err}
	}
}

func (m Model) speak(ctx context.Context, text string, delay time.Duration) tea.Cmd {
	gen := m.session.Generation
	l := m.speech
	return func() tea.Msg {
		return spokenMsg{gen: gen, delay: delay, err: l.Speak(ctx, text)}
	}
}

func (m Model) save(sum model.Summary) tea.Cmd {
	gen := m.session.Generation
	s := m.saver
	return func() tea.Msg {
		if s == nil {
			return savedMsg{gen: gen}
		}
		return savedMsg{gen: gen, err: s.Save(sum)}
	}
}

func listenAfter(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return listenMsg{gen: gen} })
}

func showQuestionAfter(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return showQuestionMsg{gen: gen} })
}
