package speech

import (
	"context"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient wraps an OpenAI-compatible audio API: Whisper for
// transcription and the speech endpoint for synthesis.
type OpenAIClient struct {
	api      *openai.Client
	sttModel string
	ttsModel string
	voice    string
	language string
}

// OpenAIConfig holds connection and model settings.
type OpenAIConfig struct {
	BaseURL  string
	APIKey   string
	STTModel string
	TTSModel string
	Voice    string
	Language string // ISO-639-1 hint for Whisper, empty for auto
}

// NewOpenAIClient creates a new audio client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	c := &OpenAIClient{
		api:      openai.NewClientWithConfig(config),
		sttModel: cfg.STTModel,
		ttsModel: cfg.TTSModel,
		voice:    cfg.Voice,
		language: cfg.Language,
	}
	if c.sttModel == "" {
		c.sttModel = openai.Whisper1
	}
	if c.ttsModel == "" {
		c.ttsModel = string(openai.TTSModel1)
	}
	if c.voice == "" {
		c.voice = string(openai.VoiceAlloy)
	}
	return c
}

// Ping checks that the endpoint answers and the key is accepted.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Transcribe sends the audio file to the transcription endpoint.
func (c *OpenAIClient) Transcribe(ctx context.Context, filePath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.sttModel,
		FilePath: filePath,
		Language: c.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription API call: %w", err)
	}
	return resp.Text, nil
}

// Synthesize writes spoken text to outPath.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, outPath string) error {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("speech API call: %w", err)
	}
	defer resp.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp)
	return err
}
