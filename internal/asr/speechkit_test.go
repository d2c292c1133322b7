package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecognize(t *testing.T) {
	var gotAuth, gotLang, gotFolder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLang = r.URL.Query().Get("lang")
		gotFolder = r.URL.Query().Get("folderId")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"привет мир"}`))
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{
		APIKey:   "key123",
		FolderID: "folder456",
		APIURL:   srv.URL,
	})

	audio := make([]byte, 32000)
	res, err := c.Recognize(context.Background(), audio, "ru-RU")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if res.Text != "привет мир" {
		t.Errorf("Text = %q, want %q", res.Text, "привет мир")
	}
	if res.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", res.Confidence)
	}
	// 32000 bytes at 16kHz mono -> 2 seconds.
	if res.Duration != 2.0 {
		t.Errorf("Duration = %v, want 2.0", res.Duration)
	}

	if gotAuth != "Api-Key key123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Api-Key key123")
	}
	if gotLang != "ru-RU" {
		t.Errorf("lang = %q, want ru-RU", gotLang)
	}
	if gotFolder != "folder456" {
		t.Errorf("folderId = %q, want folder456", gotFolder)
	}
}

func TestRecognizeEmptyAudio(t *testing.T) {
	c := NewSpeechKitClient(SpeechKitConfig{APIKey: "key"})
	if _, err := c.Recognize(context.Background(), nil, "ru-RU"); err == nil {
		t.Error("Recognize with empty audio succeeded, want error")
	}
}

func TestRecognizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{APIKey: "key", APIURL: srv.URL})
	if _, err := c.Recognize(context.Background(), []byte{1, 2, 3}, "ru-RU"); err == nil {
		t.Error("Recognize succeeded on 400, want error")
	}
}

func TestRecognizeContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{APIKey: "key", APIURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Recognize(ctx, []byte{1, 2, 3}, "ru-RU"); err == nil {
		t.Error("Recognize succeeded with cancelled context, want error")
	}
}
