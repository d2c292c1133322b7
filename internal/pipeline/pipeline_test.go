package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solomonczyk/sales-voice-assistant/internal/asr"
	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/dialog"
	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
	"github.com/solomonczyk/sales-voice-assistant/internal/notifications"
	"github.com/solomonczyk/sales-voice-assistant/internal/session"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
	"github.com/solomonczyk/sales-voice-assistant/internal/tts"
)

type coordinatorDeps struct {
	asrClient asr.Client
	ttsClient tts.Client
	crmClient crm.Client
	sessions  *session.Store
	stats     *stats.Registry
}

func newTestCoordinator(d coordinatorDeps) *Coordinator {
	logger := testLogger()
	if d.sessions == nil {
		d.sessions = session.New()
	}
	if d.stats == nil {
		d.stats = stats.New()
	}

	engine := dialog.NewEngine(dialog.DefaultRuleSet(), d.sessions, d.stats, logger)
	rec := NewRecognitionAdapter(d.asrClient, "yandex-speechkit", time.Second, d.stats, logger)
	syn := NewSynthesisAdapter(d.ttsClient, tts.NewAudioStore(16), tts.DefaultVoices(), "yandex-speechkit", time.Second, d.stats, logger)
	crmAd := NewCRMAdapter(d.crmClient, "bitrix24", time.Second, d.stats, logger)
	notifier := notifications.NewNotifier(nil, nil, nil, logger)

	return NewCoordinator(rec, engine, syn, crmAd, Config{}, eventlog.New(nil), notifier, logger)
}

func stageByName(t *testing.T, run *Run, name string) StageResult {
	t.Helper()
	for _, s := range run.Stages {
		if s.Stage == name {
			return s
		}
	}
	t.Fatalf("stage %q missing from run (stages: %v)", name, run.Stages)
	return StageResult{}
}

func TestRunTextInput(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{ttsClient: &fakeTTS{audio: []byte("WAV")}})

	run, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "Привет!"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := stageByName(t, run, StageRecognition)
	if rec.Provider != "caller" {
		t.Errorf("recognition provider = %q, want caller", rec.Provider)
	}
	if rec.Status != StatusOK {
		t.Errorf("recognition status = %q, want ok", rec.Status)
	}

	if run.Intent != "greeting" {
		t.Errorf("Intent = %q, want greeting", run.Intent)
	}
	if run.AssistantMessage == "" {
		t.Error("AssistantMessage is empty")
	}
	if run.AudioURL == "" {
		t.Error("AudioURL is empty")
	}
	if run.Degraded() {
		t.Error("run degraded with healthy providers")
	}

	// greeting is not actionable: exactly three stages.
	if len(run.Stages) != 3 {
		t.Errorf("got %d stages, want 3", len(run.Stages))
	}
}

// Recognition degradation never aborts the pipeline: the canned transcript
// flows into dialog and the run completes with the stage marked degraded.
func TestRunDegradedRecognitionStillCompletes(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{ttsClient: &fakeTTS{audio: []byte("WAV")}})

	run, err := c.Run(context.Background(), CallInput{SessionID: "s1", Audio: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := stageByName(t, run, StageRecognition)
	if rec.Status != StatusDegraded {
		t.Errorf("recognition status = %q, want degraded", rec.Status)
	}
	if rec.Provider != FallbackProvider {
		t.Errorf("recognition provider = %q, want %q", rec.Provider, FallbackProvider)
	}

	dia := stageByName(t, run, StageDialog)
	if dia.Status != StatusOK {
		t.Errorf("dialog status = %q, want ok", dia.Status)
	}
	// The canned transcript starts with "Привет" and classifies as greeting.
	if run.Intent != "greeting" {
		t.Errorf("Intent = %q, want greeting", run.Intent)
	}
	if !run.Degraded() {
		t.Error("Degraded() = false with a degraded stage")
	}
}

func TestRunActionableIntentCreatesCRMStage(t *testing.T) {
	fc := &fakeCRM{resp: &crm.Response{Success: true, ID: "71"}}
	c := newTestCoordinator(coordinatorDeps{ttsClient: &fakeTTS{audio: []byte("WAV")}, crmClient: fc})

	run, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "интересует цена продукта"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Intent != "product_inquiry" {
		t.Fatalf("Intent = %q, want product_inquiry", run.Intent)
	}
	crmStage := stageByName(t, run, StageCRM)
	if crmStage.Status != StatusOK {
		t.Errorf("crm status = %q, want ok", crmStage.Status)
	}
	if len(run.Stages) != 4 {
		t.Errorf("got %d stages, want 4", len(run.Stages))
	}

	resp, ok := crmStage.Payload.(*crm.Response)
	if !ok {
		t.Fatalf("crm payload type = %T, want *crm.Response", crmStage.Payload)
	}
	if resp.ID != "71" {
		t.Errorf("record id = %q, want 71", resp.ID)
	}
}

func TestRunNonActionableIntentSkipsCRM(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{})

	run, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "до свидания"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Intent != "goodbye" {
		t.Fatalf("Intent = %q, want goodbye", run.Intent)
	}
	for _, s := range run.Stages {
		if s.Stage == StageCRM {
			t.Error("crm stage present for non-actionable intent")
		}
	}
}

func TestRunScheduleMeetingCreatesTask(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{})

	run, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "хочу записаться на встречу"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Intent != "schedule_meeting" {
		t.Fatalf("Intent = %q, want schedule_meeting", run.Intent)
	}
	crmStage := stageByName(t, run, StageCRM)
	resp := crmStage.Payload.(*crm.Response)
	if !resp.Success {
		t.Error("task creation not successful")
	}
	// No CRM configured: the record gets a local task id.
	if crmStage.Status != StatusDegraded {
		t.Errorf("crm status = %q, want degraded without provider", crmStage.Status)
	}
}

func TestRunValidation(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{})

	tests := []struct {
		name  string
		input CallInput
	}{
		{
			name:  "no input",
			input: CallInput{SessionID: "s1"},
		},
		{
			name:  "whitespace text only",
			input: CallInput{SessionID: "s1", Text: "   "},
		},
		{
			name:  "unknown voice",
			input: CallInput{SessionID: "s1", Text: "привет", Voice: "nonexistent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Run(context.Background(), tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Run error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestRunGeneratesSessionID(t *testing.T) {
	c := newTestCoordinator(coordinatorDeps{})

	run1, err := c.Run(context.Background(), CallInput{Text: "привет"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	run2, err := c.Run(context.Background(), CallInput{Text: "привет"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run1.SessionID == "" || run2.SessionID == "" {
		t.Fatal("auto session id is empty")
	}
	if run1.SessionID == run2.SessionID {
		t.Errorf("auto session ids collide: %q", run1.SessionID)
	}
	if run1.ID == run2.ID {
		t.Errorf("run ids collide: %q", run1.ID)
	}
}

func TestRunSessionStateAccumulates(t *testing.T) {
	sessions := session.New()
	c := newTestCoordinator(coordinatorDeps{sessions: sessions})

	if _, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "привет"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := c.Run(context.Background(), CallInput{SessionID: "s1", Text: "какая цена"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, ok := sessions.Snapshot("s1")
	if !ok {
		t.Fatal("session missing after runs")
	}
	if snap["message_count"] != 2 {
		t.Errorf("message_count = %v, want 2", snap["message_count"])
	}
	if snap["last_intent"] != "product_inquiry" {
		t.Errorf("last_intent = %v, want product_inquiry", snap["last_intent"])
	}
}

func TestRunContextPatchReachesSession(t *testing.T) {
	sessions := session.New()
	c := newTestCoordinator(coordinatorDeps{sessions: sessions})

	_, err := c.Run(context.Background(), CallInput{
		SessionID: "s1",
		Text:      "интересует продукт",
		Context:   map[string]any{"client_name": "Анна", "client_phone": "+79991234567"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, _ := sessions.Snapshot("s1")
	if snap["client_name"] != "Анна" {
		t.Errorf("client_name = %v, want Анна", snap["client_name"])
	}
}
