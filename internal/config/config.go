// Package config turns bound flags, environment and config files into a
// validated Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pavelanni/flashquiz/internal/model"
)

// Config holds every setting of the quiz command.
type Config struct {
	Deck         string `mapstructure:"deck" validate:"required"`
	CorrectLog   string `mapstructure:"correct-log" validate:"required"`
	IncorrectLog string `mapstructure:"incorrect-log" validate:"required"`
	SummaryTable string `mapstructure:"summary-table" validate:"required"`
	DB           string `mapstructure:"db"` // empty disables the history database
	Lang         string `mapstructure:"lang" validate:"required"`

	Shuffle           bool   `mapstructure:"shuffle"`
	SpeakQuestions    bool   `mapstructure:"speak-questions"`
	UnavailablePolicy string `mapstructure:"unavailable-policy" validate:"oneof=stall incorrect"`

	ListenDelay   time.Duration `mapstructure:"listen-delay" validate:"gte=0s"`
	AdvanceDelay  time.Duration `mapstructure:"advance-delay" validate:"gte=0s"`
	RelistenDelay time.Duration `mapstructure:"relisten-delay" validate:"gte=0s"`
	ListenTimeout time.Duration `mapstructure:"listen-timeout" validate:"gt=0s"`
	PhraseLimit   time.Duration `mapstructure:"phrase-limit" validate:"gt=0s"`
	Calibration   time.Duration `mapstructure:"calibration" validate:"gte=0s"`

	STTProvider     string   `mapstructure:"stt-provider" validate:"oneof=openai deepgram"`
	TTSProvider     string   `mapstructure:"tts-provider" validate:"oneof=none openai elevenlabs"`
	OpenAIURL       string   `mapstructure:"openai-url"`
	OpenAIKey       string   `mapstructure:"openai-key"`
	STTModel        string   `mapstructure:"stt-model"`
	TTSModel        string   `mapstructure:"tts-model"`
	TTSVoice        string   `mapstructure:"tts-voice"`
	SpeechLanguage  string   `mapstructure:"speech-lang"`
	DeepgramKey     string   `mapstructure:"deepgram-key" validate:"required_if=STTProvider deepgram"`
	ElevenLabsKey   string   `mapstructure:"elevenlabs-key" validate:"required_if=TTSProvider elevenlabs"`
	ElevenLabsVoice string   `mapstructure:"elevenlabs-voice"`
	SoxBin          string   `mapstructure:"sox-bin"`
	Player          []string `mapstructure:"player"`
}

var validate = validator.New()

// speechFields are the settings a bare microphone check needs.
var speechFields = []string{
	"Lang", "ListenTimeout", "PhraseLimit", "Calibration",
	"STTProvider", "DeepgramKey",
}

// Load reads a .env file if present, binds the provider API key variables and
// decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadSpeech is Load for commands that only record and transcribe. Quiz
// file paths and the question reader are left unchecked.
func LoadSpeech(v *viper.Viper) (Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := report(validate.StructPartial(cfg, speechFields...)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (Config, error) {
	_ = godotenv.Load()

	keys := []struct{ key, env string }{
		{"openai-key", "OPENAI_API_KEY"},
		{"deepgram-key", "DEEPGRAM_API_KEY"},
		{"elevenlabs-key", "ELEVENLABS_API_KEY"},
	}
	for _, k := range keys {
		envName := "FLASHQUIZ_" + strings.ToUpper(strings.ReplaceAll(k.key, "-", "_"))
		if err := v.BindEnv(k.key, envName, k.env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", k.env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg Config) error {
	return report(validate.Struct(cfg))
}

func report(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}
	var msgs []string
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s %s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Quiz returns the runtime quiz parameters.
func (c Config) Quiz() model.QuizConfig {
	return model.QuizConfig{
		Timing: model.Timing{
			ListenDelay:   c.ListenDelay,
			AdvanceDelay:  c.AdvanceDelay,
			RelistenDelay: c.RelistenDelay,
		},
		Listen: model.ListenConfig{
			Timeout:     c.ListenTimeout,
			PhraseLimit: c.PhraseLimit,
		},
		UnavailablePolicy: model.UnavailablePolicy(c.UnavailablePolicy),
		SpeakQuestions:    c.SpeakQuestions,
		Shuffle:           c.Shuffle,
	}
}
