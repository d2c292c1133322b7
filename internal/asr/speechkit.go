package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const speechKitSTTURL = "https://stt.api.cloud.yandex.net/speech/v1/stt:recognize"

// SpeechKitClient implements the Client interface using the Yandex SpeechKit
// synchronous recognition API.
type SpeechKitClient struct {
	apiKey     string
	folderID   string
	apiURL     string
	httpClient *http.Client
}

// SpeechKitConfig holds configuration for the SpeechKit recognition client.
type SpeechKitConfig struct {
	APIKey     string
	FolderID   string
	APIURL     string       // override for tests, defaults to the cloud endpoint
	HTTPClient *http.Client // shared pooled client, defaults to http.DefaultClient
}

// NewSpeechKitClient creates a new SpeechKit recognition client.
func NewSpeechKitClient(cfg SpeechKitConfig) *SpeechKitClient {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = speechKitSTTURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpeechKitClient{
		apiKey:     cfg.APIKey,
		folderID:   cfg.FolderID,
		apiURL:     apiURL,
		httpClient: httpClient,
	}
}

// speechKitResponse is the recognition response envelope.
type speechKitResponse struct {
	Result  string `json:"result"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Recognize transcribes the audio payload. SpeechKit v1 does not report a
// confidence score, so a fixed provider confidence is returned; duration is
// estimated from the payload size at 16kHz mono.
func (c *SpeechKitClient) Recognize(ctx context.Context, audio []byte, language string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	q := url.Values{}
	q.Set("topic", "general")
	q.Set("lang", language)
	q.Set("folderId", c.folderID)

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "audio/x-pcm;bit=16;rate=16000")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SpeechKit API error: %s - %s", resp.Status, string(respBody))
	}

	var skResp speechKitResponse
	if err := json.NewDecoder(resp.Body).Decode(&skResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &Result{
		Text:       skResp.Result,
		Confidence: 0.95,
		Duration:   float64(len(audio)) / 16000.0,
	}, nil
}
