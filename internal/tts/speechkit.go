package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const speechKitTTSURL = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"

// SpeechKitClient implements the Client interface using the Yandex SpeechKit
// synthesis API.
type SpeechKitClient struct {
	apiKey     string
	folderID   string
	apiURL     string
	sampleRate int
	speed      float64
	httpClient *http.Client
}

// SpeechKitConfig holds configuration for the SpeechKit synthesis client.
type SpeechKitConfig struct {
	APIKey     string
	FolderID   string
	APIURL     string       // override for tests, defaults to the cloud endpoint
	SampleRate int          // defaults to 16000
	Speed      float64      // defaults to 1.0
	HTTPClient *http.Client // shared pooled client, defaults to http.DefaultClient
}

// NewSpeechKitClient creates a new SpeechKit synthesis client.
func NewSpeechKitClient(cfg SpeechKitConfig) *SpeechKitClient {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = speechKitTTSURL
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = 1.0
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpeechKitClient{
		apiKey:     cfg.APIKey,
		folderID:   cfg.FolderID,
		apiURL:     apiURL,
		sampleRate: sampleRate,
		speed:      speed,
		httpClient: httpClient,
	}
}

// Synthesize converts text to speech. format maps to the SpeechKit output
// format ("wav" is sent as lpcm at the configured sample rate).
func (c *SpeechKitClient) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("voice", voice)
	form.Set("lang", "ru-RU")
	form.Set("folderId", c.folderID)
	form.Set("speed", strconv.FormatFloat(c.speed, 'f', -1, 64))

	switch format {
	case "", "wav", "lpcm":
		form.Set("format", "lpcm")
		form.Set("sampleRateHertz", strconv.Itoa(c.sampleRate))
	default:
		form.Set("format", format)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SpeechKit API error: %s - %s", resp.Status, string(respBody))
	}

	return io.ReadAll(resp.Body)
}
