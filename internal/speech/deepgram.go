package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

const deepgramURL = "https://api.deepgram.com/v1/listen"

// DeepgramClient transcribes audio with the Deepgram prerecorded API.
type DeepgramClient struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	client   *http.Client
}

// NewDeepgramClient creates a Deepgram transcriber.
func NewDeepgramClient(apiKey, model, language string) *DeepgramClient {
	if model == "" {
		model = "nova-2"
	}
	if language == "" {
		language = "en"
	}
	return &DeepgramClient{
		apiKey:   apiKey,
		baseURL:  deepgramURL,
		model:    model,
		language: language,
		client:   &http.Client{},
	}
}

// Transcribe posts the WAV file and returns the first alternative. Local file
// errors come back as *AdapterError.
func (c *DeepgramClient) Transcribe(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", &AdapterError{Op: "read audio", Err: err}
	}

	q := url.Values{}
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("smart_format", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read deepgram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram error: %d %s", resp.StatusCode, body)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode deepgram: %w", err)
	}

	// No alternatives means nothing intelligible was heard.
	if len(parsed.Results.Channels) == 0 ||
		len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
