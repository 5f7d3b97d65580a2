package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/flashquiz/internal/config"
	"github.com/pavelanni/flashquiz/internal/deck"
	"github.com/pavelanni/flashquiz/internal/handler"
	appI18n "github.com/pavelanni/flashquiz/internal/i18n"
	"github.com/pavelanni/flashquiz/internal/results"
	"github.com/pavelanni/flashquiz/internal/speech"
	"github.com/pavelanni/flashquiz/internal/store"
	"github.com/pavelanni/flashquiz/internal/tui"
)

//go:generate templ generate

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flashquiz",
		Short: "Flashcard quiz answered out loud",
	}

	run := runCmd()
	root.AddCommand(run, listenCmd(), historyCmd(), exportCmd(), serveCmd())

	// Make "run" the default when no subcommand is given.
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the quiz in the terminal",
		RunE:  runQuiz,
	}
	f := cmd.Flags()
	f.StringP("deck", "f", "flashcards.json", "Flashcards JSON file")
	f.String("correct-log", "correct_answers.txt", "Log of correctly answered cards")
	f.String("incorrect-log", "incorrect_answers.txt", "Log of incorrectly answered cards")
	f.String("summary-table", "quiz_results.xlsx", "Spreadsheet with one row per finished quiz")
	f.String("db", "flashquiz.db", "SQLite history database (empty to disable)")
	f.Bool("shuffle", true, "Randomize card order")
	f.Bool("speak-questions", false, "Read each question aloud before listening")
	f.String("unavailable-policy", "stall", "What to do when speech recognition fails (stall, incorrect)")
	f.Duration("listen-delay", time.Second, "Delay before listening to the first card")
	f.Duration("advance-delay", time.Second, "Delay after an answer before the next card")
	f.Duration("relisten-delay", 100*time.Millisecond, "Delay between showing a card and listening")
	addSpeechFlags(f)
	f.String("tts-provider", "none", "Question reader (none, openai, elevenlabs)")
	f.String("tts-model", "", "Speech synthesis model (provider default if empty)")
	f.String("tts-voice", "", "Speech synthesis voice")
	f.String("elevenlabs-key", "", "ElevenLabs API key (or ELEVENLABS_API_KEY)")
	f.String("elevenlabs-voice", "", "ElevenLabs voice ID")
	f.StringSlice("player", nil, "Audio player command (default ffplay -nodisp -autoexit -loglevel quiet)")
	f.String("log-file", "flashquiz.log", "Log file; the terminal is used by the quiz")
	return cmd
}

func listenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Record one phrase and print what was recognized",
		RunE:  runListen,
	}
	addSpeechFlags(cmd.Flags())
	return cmd
}

// addSpeechFlags registers the recording and recognition flags shared by
// run and listen.
func addSpeechFlags(f *pflag.FlagSet) {
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.Duration("listen-timeout", 3*time.Second, "How long to wait for speech to start")
	f.Duration("phrase-limit", 3*time.Second, "Maximum length of one answer")
	f.Duration("calibration", 200*time.Millisecond, "Ambient noise sample length")
	f.String("stt-provider", "openai", "Speech recognition provider (openai, deepgram)")
	f.String("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("openai-key", "", "API key for the OpenAI-compatible endpoint (or OPENAI_API_KEY)")
	f.String("stt-model", "", "Speech recognition model (provider default if empty)")
	f.String("speech-lang", "", "Language hint for speech recognition")
	f.String("deepgram-key", "", "Deepgram API key (or DEEPGRAM_API_KEY)")
	f.String("sox-bin", "sox", "sox executable used for recording")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished quizzes",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "flashquiz.db", "SQLite history database")
	f.IntP("limit", "n", 20, "Number of quizzes to show (0 = all)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quiz history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "flashquiz.db", "SQLite history database")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve quiz history as web pages and JSON over HTTP",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "flashquiz.db", "SQLite history database")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command, w io.Writer) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(w, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("FLASHQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("flashquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/flashquiz")
	v.AddConfigPath("/etc/flashquiz")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runQuiz(cmd *cobra.Command, _ []string) error {
	logOut := io.Writer(os.Stderr)
	if path := viperForCmd(cmd).GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(cmd, logOut)
	v := viperForCmd(cmd)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	tr := appI18n.NewTranslator(cfg.Lang)

	d, err := deck.Load(cfg.Deck)
	if err != nil {
		return err
	}

	var history results.HistoryRecorder
	if cfg.DB != "" {
		db, err := store.New(cfg.DB)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		history = db

		if err := recordDeck(db, cfg.Deck); err != nil {
			slog.Warn("record deck hash", "error", err)
		}
	}

	if cfg.Shuffle {
		d.Shuffle()
	}

	svc := buildSpeech(cfg)
	persister := results.New(results.Paths{
		CorrectLog:   cfg.CorrectLog,
		IncorrectLog: cfg.IncorrectLog,
		SummaryTable: cfg.SummaryTable,
	}, history)

	slog.Info("starting quiz",
		"deck", cfg.Deck,
		"cards", d.Len(),
		"shuffle", cfg.Shuffle,
		"stt", cfg.STTProvider,
		"tts", cfg.TTSProvider,
		"unavailable_policy", cfg.UnavailablePolicy,
	)
	fmt.Println(tr.Tp("CardsLoaded", d.Len()))

	p := tea.NewProgram(tui.New(d, svc, persister, cfg.Quiz(), tr), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run quiz: %w", err)
	}
	if m, ok := final.(tui.Model); ok {
		s := m.Session()
		slog.Info("quiz closed", "phase", s.Phase, "correct", s.CorrectCount, "incorrect", s.IncorrectCount)
	}
	return nil
}

func buildSpeech(cfg config.Config) *speech.Service {
	var oa *speech.OpenAIClient
	openAI := func() *speech.OpenAIClient {
		if oa == nil {
			oa = speech.NewOpenAIClient(speech.OpenAIConfig{
				BaseURL:  cfg.OpenAIURL,
				APIKey:   cfg.OpenAIKey,
				STTModel: cfg.STTModel,
				TTSModel: cfg.TTSModel,
				Voice:    cfg.TTSVoice,
				Language: cfg.SpeechLanguage,
			})
		}
		return oa
	}

	var stt speech.Transcriber
	switch cfg.STTProvider {
	case "deepgram":
		stt = speech.NewDeepgramClient(cfg.DeepgramKey, cfg.STTModel, cfg.SpeechLanguage)
	default:
		stt = openAI()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := openAI().Ping(ctx); err != nil {
			slog.Warn("speech recognition endpoint check failed", "url", cfg.OpenAIURL, "error", err)
		} else {
			slog.Info("speech recognition endpoint OK", "url", cfg.OpenAIURL)
		}
	}

	var tts speech.Synthesizer
	var player speech.Player
	switch cfg.TTSProvider {
	case "openai":
		tts = openAI()
	case "elevenlabs":
		tts = speech.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoice)
	}
	if tts != nil {
		player = speech.NewCommandPlayer(cfg.Player)
	}

	opts := speech.DefaultOptions()
	opts.Calibration = cfg.Calibration
	return speech.NewService(speech.NewSoxRecorder(cfg.SoxBin), stt, tts, player, opts)
}

func runListen(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	cfg, err := config.LoadSpeech(v)
	if err != nil {
		return err
	}
	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return listenOnce(ctx, buildSpeech(cfg), cfg, appI18n.NewTranslator(cfg.Lang), cmd.OutOrStdout())
}

type phraseListener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error)
}

// listenOnce records a single phrase and prints the transcript. Unrecognized
// speech and an unreachable service are reported to the user, not returned.
func listenOnce(ctx context.Context, l phraseListener, cfg config.Config, tr *appI18n.Translator, w io.Writer) error {
	fmt.Fprintln(w, tr.T("SaySomething"))
	text, err := l.Listen(ctx, cfg.ListenTimeout, cfg.PhraseLimit)
	switch {
	case err == nil:
		fmt.Fprintln(w, tr.Td("YouSaid", map[string]any{"Text": text}))
	case errors.Is(err, speech.ErrNotUnderstood), errors.Is(err, speech.ErrWaitTimeout):
		fmt.Fprintln(w, tr.T("CouldNotUnderstand"))
	case errors.Is(err, speech.ErrServiceUnavailable):
		slog.Warn("listen", "error", err)
		fmt.Fprintln(w, tr.T("CouldNotRequest"))
	default:
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// recordDeck stores the deck checksum so edits between runs show up in the log.
func recordDeck(db *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	changed, err := db.RecordDeckHash(path, sha256sum(data))
	if err != nil {
		return err
	}
	if changed {
		slog.Warn("flashcards file changed since last run; history rows before this point used the old deck", "path", path)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	list, err := db.ListResults(v.GetInt("limit"))
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	st, err := db.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, r := range list {
		fmt.Fprintf(out, "%s  %-14s  %2d/%-2d  %5.1f%%  %s\n",
			shortID(r.ID), humanize.Time(r.FinishedAt), r.Correct, r.Total, r.Accuracy(), r.DeckPath)
	}
	fmt.Fprintf(out, "\n%s quizzes, %s correct, %s incorrect, %.1f%% accuracy\n",
		humanize.Comma(int64(st.Quizzes)), humanize.Comma(int64(st.Correct)),
		humanize.Comma(int64(st.Incorrect)), st.Accuracy)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAllResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", len(export.Results), "output", outPath)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.New(db).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "db", v.GetString("db"))
	return http.ListenAndServe(addr, r)
}
