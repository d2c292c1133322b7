package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSynthesize(t *testing.T) {
	var gotForm url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		_, _ = w.Write([]byte("AUDIO"))
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{
		APIKey:   "key123",
		FolderID: "folder456",
		APIURL:   srv.URL,
	})

	audio, err := c.Synthesize(context.Background(), "Здравствуйте", "alena", "wav")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "AUDIO" {
		t.Errorf("audio = %q, want AUDIO", audio)
	}

	if gotAuth != "Api-Key key123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Api-Key key123")
	}
	if gotForm.Get("text") != "Здравствуйте" {
		t.Errorf("text = %q, want Здравствуйте", gotForm.Get("text"))
	}
	if gotForm.Get("voice") != "alena" {
		t.Errorf("voice = %q, want alena", gotForm.Get("voice"))
	}
	// "wav" maps to lpcm with an explicit sample rate.
	if gotForm.Get("format") != "lpcm" {
		t.Errorf("format = %q, want lpcm", gotForm.Get("format"))
	}
	if gotForm.Get("sampleRateHertz") != "16000" {
		t.Errorf("sampleRateHertz = %q, want 16000", gotForm.Get("sampleRateHertz"))
	}
	if gotForm.Get("folderId") != "folder456" {
		t.Errorf("folderId = %q, want folder456", gotForm.Get("folderId"))
	}
}

func TestSynthesizePassthroughFormat(t *testing.T) {
	var gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotFormat = r.PostForm.Get("format")
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{APIKey: "key", APIURL: srv.URL})
	if _, err := c.Synthesize(context.Background(), "текст", "filipp", "oggopus"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotFormat != "oggopus" {
		t.Errorf("format = %q, want oggopus", gotFormat)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSpeechKitClient(SpeechKitConfig{APIKey: "key", APIURL: srv.URL})
	if _, err := c.Synthesize(context.Background(), "текст", "alena", "wav"); err == nil {
		t.Error("Synthesize succeeded on 429, want error")
	}
}

func TestFindVoice(t *testing.T) {
	voices := DefaultVoices()

	v, ok := FindVoice(voices, "filipp")
	if !ok {
		t.Fatal("FindVoice(filipp) not found")
	}
	if v.Gender != "male" || v.Language != "ru-RU" {
		t.Errorf("filipp = %+v, want male ru-RU", v)
	}

	if _, ok := FindVoice(voices, "nonexistent"); ok {
		t.Error("FindVoice(nonexistent) found")
	}
}

func TestDefaultVoicesCatalog(t *testing.T) {
	voices := DefaultVoices()
	if len(voices) != 4 {
		t.Fatalf("DefaultVoices returned %d voices, want 4", len(voices))
	}
	for _, id := range []string{"alena", "filipp", "jane", "john"} {
		if _, ok := FindVoice(voices, id); !ok {
			t.Errorf("voice %q missing from catalog", id)
		}
	}
}
