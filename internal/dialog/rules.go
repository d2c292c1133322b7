package dialog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent confidence is a fixed constant tied to match outcome, never derived
// from text quality or entity count.
const (
	MatchConfidence   = 0.9
	NoMatchConfidence = 0.3
)

// IntentUnknown is the sentinel label returned when no rule matches.
const IntentUnknown = "unknown"

// Rule maps trigger phrases to an intent with a canned response and
// zero or more action tags (e.g. create_lead).
type Rule struct {
	Intent   string   `yaml:"intent"`
	Phrases  []string `yaml:"phrases"`
	Response string   `yaml:"response"`
	Actions  []string `yaml:"actions"`
}

// EntityTrigger sets a presence-only boolean flag when any of its trigger
// words occurs in the normalized text.
type EntityTrigger struct {
	Flag  string   `yaml:"flag"`
	Words []string `yaml:"words"`
}

// RuleSet is an ordered, immutable intent rule table. The first rule with a
// matching phrase wins; overlapping phrases across rules are resolved purely
// by declaration order. Build once at startup and pass by reference.
type RuleSet struct {
	rules           []Rule
	entities        []EntityTrigger
	unknownResponse string
}

// IntentResult is the outcome of classifying one utterance.
type IntentResult struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Entities   map[string]bool `json:"entities"`
}

// ruleFile is the YAML layout of an external rule file.
type ruleFile struct {
	UnknownResponse string          `yaml:"unknown_response"`
	Rules           []Rule          `yaml:"rules"`
	Entities        []EntityTrigger `yaml:"entities"`
}

// DefaultRuleSet returns the built-in sales assistant rule table.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		rules: []Rule{
			{
				Intent:   "greeting",
				Phrases:  []string{"привет", "здравствуйте", "добрый день", "добрый вечер"},
				Response: "Здравствуйте! Я голосовой ассистент отдела продаж. Чем могу помочь?",
			},
			{
				Intent:   "product_inquiry",
				Phrases:  []string{"продукт", "услуга", "цена", "стоимость", "каталог"},
				Response: "Расскажите, пожалуйста, какой продукт или услуга вас интересует? Я помогу подобрать оптимальное решение.",
				Actions:  []string{"create_lead"},
			},
			{
				Intent:   "contact_info",
				Phrases:  []string{"контакт", "телефон", "адрес", "офис", "связаться"},
				Response: "Наши контакты: телефон +7 (999) 123-45-67, email info@company.com, адрес: г. Москва, ул. Примерная, д. 1",
				Actions:  []string{"log_interaction"},
			},
			{
				Intent:   "schedule_meeting",
				Phrases:  []string{"встреча", "встретиться", "записаться", "время", "расписание"},
				Response: "Конечно! Когда вам удобно встретиться? У нас есть свободные слоты на завтра и послезавтра. Какой день предпочтете?",
				Actions:  []string{"create_task"},
			},
			{
				Intent:   "goodbye",
				Phrases:  []string{"до свидания", "пока", "спасибо", "всего хорошего"},
				Response: "Спасибо за обращение! Хорошего дня! Если возникнут вопросы, обращайтесь!",
			},
		},
		entities: []EntityTrigger{
			{Flag: "phone_requested", Words: []string{"телефон"}},
			{Flag: "email_requested", Words: []string{"email", "почта"}},
			{Flag: "meeting_requested", Words: []string{"встреча", "встретиться", "время"}},
		},
		unknownResponse: "Извините, я не совсем понял ваш вопрос. Можете переформулировать? Я помогу с информацией о продуктах, контактах или записи на встречу.",
	}
}

// LoadRuleSet reads a rule table from a YAML file. Phrase and trigger words
// are normalized at load time so matching stays consistent with input
// normalization. Entity triggers and the unknown response fall back to the
// built-in defaults when the file omits them.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s contains no rules", path)
	}

	defaults := DefaultRuleSet()
	rs := &RuleSet{
		rules:           make([]Rule, 0, len(f.Rules)),
		entities:        f.Entities,
		unknownResponse: f.UnknownResponse,
	}
	if len(rs.entities) == 0 {
		rs.entities = defaults.entities
	}
	if rs.unknownResponse == "" {
		rs.unknownResponse = defaults.unknownResponse
	}

	for i, r := range f.Rules {
		if r.Intent == "" {
			return nil, fmt.Errorf("rule %d: missing intent", i)
		}
		if len(r.Phrases) == 0 {
			return nil, fmt.Errorf("rule %q: no trigger phrases", r.Intent)
		}
		for j, p := range r.Phrases {
			r.Phrases[j] = Normalize(p)
		}
		rs.rules = append(rs.rules, r)
	}
	for i := range rs.entities {
		for j, w := range rs.entities[i].Words {
			rs.entities[i].Words[j] = Normalize(w)
		}
	}
	return rs, nil
}

// Classify maps an utterance to an intent label with a fixed confidence.
// First-match policy: rules are tested in declaration order and the first
// rule with any phrase contained in the normalized text wins. Entities are
// filled by a separate pass (Extract).
func (rs *RuleSet) Classify(text string) IntentResult {
	normalized := Normalize(text)

	for _, rule := range rs.rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(normalized, phrase) {
				return IntentResult{
					Label:      rule.Intent,
					Confidence: MatchConfidence,
					Entities:   rs.Extract(normalized),
				}
			}
		}
	}

	return IntentResult{
		Label:      IntentUnknown,
		Confidence: NoMatchConfidence,
		Entities:   rs.Extract(normalized),
	}
}

// Extract flags the presence of structured request topics in normalized text.
// Topics that are not triggered are absent from the map, never explicit false.
func (rs *RuleSet) Extract(normalized string) map[string]bool {
	entities := make(map[string]bool)
	for _, trig := range rs.entities {
		for _, w := range trig.Words {
			if strings.Contains(normalized, w) {
				entities[trig.Flag] = true
				break
			}
		}
	}
	return entities
}

// Respond maps an intent to the assistant response text and action tags.
// Pure lookup; the session context is an injection point for future
// personalization and is not consulted for branching yet.
func (rs *RuleSet) Respond(intent string, entities map[string]bool, sessionContext map[string]any) (string, []string) {
	_ = entities
	_ = sessionContext

	for _, rule := range rs.rules {
		if rule.Intent == intent {
			return rule.Response, append([]string(nil), rule.Actions...)
		}
	}
	return rs.unknownResponse, nil
}

// Intents returns the intent labels in declaration order.
func (rs *RuleSet) Intents() []string {
	intents := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		intents = append(intents, r.Intent)
	}
	return intents
}

// Rules returns a copy of the rule table for inspection endpoints.
func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}
