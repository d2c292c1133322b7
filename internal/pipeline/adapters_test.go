package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/solomonczyk/sales-voice-assistant/internal/asr"
	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
	"github.com/solomonczyk/sales-voice-assistant/internal/tts"
)

type fakeASR struct {
	result *asr.Result
	err    error
}

func (f *fakeASR) Recognize(ctx context.Context, audio []byte, language string) (*asr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type fakeCRM struct {
	resp *crm.Response
	err  error
}

func (f *fakeCRM) CreateLead(ctx context.Context, lead crm.LeadData) (*crm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeCRM) CreateDeal(ctx context.Context, deal crm.DealData) (*crm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeCRM) CreateTask(ctx context.Context, task crm.TaskData) (*crm.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRecognitionAdapterOK(t *testing.T) {
	st := stats.New()
	a := NewRecognitionAdapter(&fakeASR{result: &asr.Result{Text: "привет", Confidence: 0.95, Duration: 2.0}}, "yandex-speechkit", time.Second, st, testLogger())

	res, out := a.Call(context.Background(), []byte{1, 2, 3}, "ru-RU")

	if out.Status != StatusOK {
		t.Errorf("Status = %q, want ok", out.Status)
	}
	if out.Provider != "yandex-speechkit" {
		t.Errorf("Provider = %q, want yandex-speechkit", out.Provider)
	}
	if res.Text != "привет" {
		t.Errorf("Text = %q, want привет", res.Text)
	}
	if st.Get(ServiceASR, "successful_requests") != 1 {
		t.Error("successful_requests not incremented")
	}
	snap := st.Snapshot(ServiceASR)
	if snap["total_audio_duration"] != 2.0 {
		t.Errorf("total_audio_duration = %v, want 2.0", snap["total_audio_duration"])
	}
}

func TestRecognitionAdapterNilClient(t *testing.T) {
	st := stats.New()
	a := NewRecognitionAdapter(nil, "yandex-speechkit", time.Second, st, testLogger())

	audio := make([]byte, 16000)
	res, out := a.Call(context.Background(), audio, "ru-RU")

	if out.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", out.Status)
	}
	if out.Provider != FallbackProvider {
		t.Errorf("Provider = %q, want %q", out.Provider, FallbackProvider)
	}
	if out.Reason == "" {
		t.Error("Reason is empty for degraded call")
	}
	if res.Text == "" {
		t.Error("fallback transcript is empty")
	}
	// Duration still estimated from payload size: 16000 bytes -> 1 second.
	if res.Duration != 1.0 {
		t.Errorf("Duration = %v, want 1.0", res.Duration)
	}
	if st.Get(ServiceASR, "failed_requests") != 1 {
		t.Error("failed_requests not incremented")
	}
	if st.Get(ServiceASR, "total_requests") != 1 {
		t.Error("total_requests not incremented")
	}
	// Domain sums only accumulate on provider success.
	snap := st.Snapshot(ServiceASR)
	if _, ok := snap["total_audio_duration"]; ok {
		t.Error("total_audio_duration accumulated on degraded call")
	}
}

func TestRecognitionAdapterProviderError(t *testing.T) {
	st := stats.New()
	a := NewRecognitionAdapter(&fakeASR{err: errors.New("quota exceeded")}, "yandex-speechkit", time.Second, st, testLogger())

	res, out := a.Call(context.Background(), []byte{1}, "ru-RU")

	if out.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", out.Status)
	}
	if !strings.Contains(out.Reason, "quota exceeded") {
		t.Errorf("Reason = %q, want provider error", out.Reason)
	}
	if res.Text == "" {
		t.Error("fallback transcript is empty")
	}
	if st.Get(ServiceASR, "failed_requests") != 1 {
		t.Error("failed_requests not incremented")
	}
}

func TestSynthesisAdapterOK(t *testing.T) {
	st := stats.New()
	store := tts.NewAudioStore(4)
	a := NewSynthesisAdapter(&fakeTTS{audio: []byte("WAVDATA")}, store, tts.DefaultVoices(), "yandex-speechkit", time.Second, st, testLogger())

	payload, out := a.Call(context.Background(), "Привет", "alena", "wav")

	if out.Status != StatusOK {
		t.Errorf("Status = %q, want ok", out.Status)
	}
	if !strings.HasPrefix(payload.AudioURL, "/audio/") || !strings.HasSuffix(payload.AudioURL, ".wav") {
		t.Errorf("AudioURL = %q, want /audio/<id>.wav", payload.AudioURL)
	}
	if payload.TextLength != 6 {
		t.Errorf("TextLength = %d, want 6 (runes, not bytes)", payload.TextLength)
	}
	// Duration estimate is 0.1s per rune.
	if payload.Duration != 0.6 {
		t.Errorf("Duration = %v, want 0.6", payload.Duration)
	}
	if payload.Voice != "alena" {
		t.Errorf("Voice = %q, want alena", payload.Voice)
	}

	// Synthesized audio must be retrievable under the id in the url.
	id := strings.TrimSuffix(strings.TrimPrefix(payload.AudioURL, "/audio/"), ".wav")
	data, ok := store.Get(id)
	if !ok || string(data) != "WAVDATA" {
		t.Errorf("stored audio = %q, %v; want WAVDATA, true", data, ok)
	}
}

func TestSynthesisAdapterDegraded(t *testing.T) {
	st := stats.New()
	store := tts.NewAudioStore(4)
	a := NewSynthesisAdapter(&fakeTTS{err: errors.New("unavailable")}, store, tts.DefaultVoices(), "yandex-speechkit", time.Second, st, testLogger())

	payload, out := a.Call(context.Background(), "Привет", "alena", "wav")

	if out.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", out.Status)
	}
	if payload.AudioURL == "" {
		t.Error("degraded payload missing audio url")
	}
	// The url must stay resolvable: a silent placeholder is stored instead.
	data, ok := store.Get(audioID(payload.AudioURL))
	if !ok {
		t.Fatalf("no audio stored for degraded url %q", payload.AudioURL)
	}
	want := int(payload.Duration * 16000 * 2)
	if len(data) != want {
		t.Errorf("placeholder length = %d, want %d", len(data), want)
	}
	for _, b := range data {
		if b != 0 {
			t.Error("placeholder audio is not silence")
			break
		}
	}
	if st.Get(ServiceTTS, "failed_requests") != 1 {
		t.Error("failed_requests not incremented")
	}
}

func TestSynthesisAdapterUniqueURLs(t *testing.T) {
	st := stats.New()
	a := NewSynthesisAdapter(nil, tts.NewAudioStore(4), tts.DefaultVoices(), "yandex-speechkit", time.Second, st, testLogger())

	p1, _ := a.Call(context.Background(), "один", "alena", "wav")
	p2, _ := a.Call(context.Background(), "один", "alena", "wav")

	if p1.AudioURL == p2.AudioURL {
		t.Errorf("identical text produced identical audio urls: %q", p1.AudioURL)
	}
}

func TestCRMAdapterOK(t *testing.T) {
	st := stats.New()
	a := NewCRMAdapter(&fakeCRM{resp: &crm.Response{Success: true, ID: "71"}}, "bitrix24", time.Second, st, testLogger())

	resp, out := a.CreateLead(context.Background(), crm.LeadData{Title: "x"})

	if out.Status != StatusOK {
		t.Errorf("Status = %q, want ok", out.Status)
	}
	if out.Provider != "bitrix24" {
		t.Errorf("Provider = %q, want bitrix24", out.Provider)
	}
	if resp.ID != "71" {
		t.Errorf("ID = %q, want 71", resp.ID)
	}
	if st.Get(ServiceCRM, "leads_created") != 1 {
		t.Error("leads_created not incremented")
	}
}

func TestCRMAdapterFallbackIDs(t *testing.T) {
	st := stats.New()
	a := NewCRMAdapter(nil, "bitrix24", time.Second, st, testLogger())

	lead, _ := a.CreateLead(context.Background(), crm.LeadData{Title: "x"})
	task, _ := a.CreateTask(context.Background(), crm.TaskData{Title: "y"})
	deal, _ := a.CreateDeal(context.Background(), crm.DealData{Title: "z"})

	if !strings.HasPrefix(lead.ID, "lead_") {
		t.Errorf("lead fallback id = %q, want lead_ prefix", lead.ID)
	}
	if !strings.HasPrefix(task.ID, "task_") {
		t.Errorf("task fallback id = %q, want task_ prefix", task.ID)
	}
	if !strings.HasPrefix(deal.ID, "deal_") {
		t.Errorf("deal fallback id = %q, want deal_ prefix", deal.ID)
	}

	lead2, _ := a.CreateLead(context.Background(), crm.LeadData{Title: "x"})
	if lead.ID == lead2.ID {
		t.Errorf("fallback ids collide: %q", lead.ID)
	}

	// Degraded creations count as failures, not domain creations.
	if st.Get(ServiceCRM, "failed_requests") != 4 {
		t.Errorf("failed_requests = %d, want 4", st.Get(ServiceCRM, "failed_requests"))
	}
	if st.Get(ServiceCRM, "leads_created") != 0 {
		t.Error("leads_created incremented on degraded call")
	}
}

func TestCRMAdapterProviderError(t *testing.T) {
	st := stats.New()
	a := NewCRMAdapter(&fakeCRM{err: errors.New("invalid token")}, "bitrix24", time.Second, st, testLogger())

	resp, out := a.CreateLead(context.Background(), crm.LeadData{Title: "x"})

	if out.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", out.Status)
	}
	if !resp.Success {
		t.Error("degraded response Success = false, want true (record kept locally)")
	}
	if !strings.Contains(out.Reason, "invalid token") {
		t.Errorf("Reason = %q, want provider error", out.Reason)
	}
}
