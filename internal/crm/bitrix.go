package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// BitrixClient implements the Client interface against a Bitrix24 inbound
// webhook (https://<domain>/rest/<user>/<token>).
type BitrixClient struct {
	webhookURL string
	httpClient *http.Client
}

// BitrixConfig holds configuration for the Bitrix24 client.
type BitrixConfig struct {
	WebhookURL string
	HTTPClient *http.Client // shared pooled client, defaults to http.DefaultClient
}

// NewBitrixClient creates a new Bitrix24 client.
func NewBitrixClient(cfg BitrixConfig) *BitrixClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BitrixClient{
		webhookURL: strings.TrimRight(cfg.WebhookURL, "/"),
		httpClient: httpClient,
	}
}

// bitrixResponse is the REST envelope: result holds the created id for
// crm.*.add, or a nested object for tasks.task.add.
type bitrixResponse struct {
	Result           json.RawMessage `json:"result"`
	ErrorCode        string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

type phoneField struct {
	Value     string `json:"VALUE"`
	ValueType string `json:"VALUE_TYPE"`
}

// CreateLead creates a lead via crm.lead.add.
func (c *BitrixClient) CreateLead(ctx context.Context, lead LeadData) (*Response, error) {
	comments := lead.Notes
	if comments == "" {
		comments = fmt.Sprintf("Создан через голосового ассистента. Интерес: %s", lead.ProductInterest)
	}

	fields := map[string]any{
		"TITLE":         lead.Title,
		"NAME":          lead.Name,
		"PHONE":         []phoneField{{Value: lead.Phone, ValueType: "WORK"}},
		"COMPANY_TITLE": lead.Company,
		"SOURCE_ID":     "WEB",
		"COMMENTS":      comments,
	}
	if lead.Email != "" {
		fields["EMAIL"] = []phoneField{{Value: lead.Email, ValueType: "WORK"}}
	}

	id, err := c.call(ctx, "crm.lead.add", map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return &Response{
		Success: true,
		ID:      id,
		Message: "Лид успешно создан в Bitrix24",
		Data: map[string]any{
			"lead_id": id,
			"title":   lead.Title,
			"name":    lead.Name,
			"phone":   lead.Phone,
			"source":  lead.Source,
		},
	}, nil
}

// CreateDeal creates a deal via crm.deal.add.
func (c *BitrixClient) CreateDeal(ctx context.Context, deal DealData) (*Response, error) {
	currency := deal.Currency
	if currency == "" {
		currency = "RUB"
	}
	comments := deal.Notes
	if comments == "" {
		comments = "Создана через голосового ассистента"
	}

	fields := map[string]any{
		"TITLE":       deal.Title,
		"OPPORTUNITY": deal.Value,
		"CURRENCY_ID": currency,
		"STAGE_ID":    "NEW",
		"COMMENTS":    comments,
	}

	id, err := c.call(ctx, "crm.deal.add", map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return &Response{
		Success: true,
		ID:      id,
		Message: "Сделка успешно создана в Bitrix24",
		Data: map[string]any{
			"deal_id":   id,
			"title":     deal.Title,
			"client_id": deal.ClientID,
			"value":     deal.Value,
			"currency":  currency,
		},
	}, nil
}

// CreateTask creates a follow-up task via tasks.task.add.
func (c *BitrixClient) CreateTask(ctx context.Context, task TaskData) (*Response, error) {
	fields := map[string]any{
		"TITLE":       task.Title,
		"DESCRIPTION": task.Description,
	}
	if task.AssignedTo != "" {
		fields["RESPONSIBLE_ID"] = task.AssignedTo
	}
	if task.DueDate != "" {
		fields["DEADLINE"] = task.DueDate
	}

	id, err := c.call(ctx, "tasks.task.add", map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return &Response{
		Success: true,
		ID:      id,
		Message: "Задача успешно создана в Bitrix24",
		Data: map[string]any{
			"task_id":     id,
			"title":       task.Title,
			"description": task.Description,
			"assigned_to": task.AssignedTo,
		},
	}, nil
}

// call posts one REST method and extracts the created record id.
func (c *BitrixClient) call(ctx context.Context, method string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Bitrix24 API error: %s - %s", resp.Status, string(respBody))
	}

	var bResp bitrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&bResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if bResp.ErrorDescription != "" {
		return "", fmt.Errorf("Bitrix24 error: %s", bResp.ErrorDescription)
	}
	if len(bResp.Result) == 0 {
		return "", fmt.Errorf("Bitrix24 response missing result")
	}

	return parseResultID(bResp.Result)
}

// parseResultID handles both flat results (crm.lead.add returns the id
// directly) and the nested tasks.task.add envelope.
func parseResultID(raw json.RawMessage) (string, error) {
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return fmt.Sprintf("%.0f", asNumber), nil
	}

	var asTask struct {
		Task struct {
			ID any `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(raw, &asTask); err == nil && asTask.Task.ID != nil {
		return fmt.Sprint(asTask.Task.ID), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		return asString, nil
	}

	return "", fmt.Errorf("unrecognized Bitrix24 result: %s", string(raw))
}
