package crm

import "context"

// LeadData describes a sales lead to create.
type LeadData struct {
	Title           string `json:"title"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email,omitempty"`
	Company         string `json:"company,omitempty"`
	Source          string `json:"source,omitempty"`
	ProductInterest string `json:"product_interest,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// DealData describes a deal to create.
type DealData struct {
	Title       string  `json:"title"`
	ClientID    string  `json:"client_id"`
	LeadID      string  `json:"lead_id,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Probability int     `json:"probability,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// TaskData describes a follow-up task to create.
type TaskData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	LeadID      string `json:"lead_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// Response is the canonical result of a create-record call.
type Response struct {
	Success bool           `json:"success"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Client defines the interface for CRM providers.
type Client interface {
	CreateLead(ctx context.Context, lead LeadData) (*Response, error)
	CreateDeal(ctx context.Context, deal DealData) (*Response, error)
	CreateTask(ctx context.Context, task TaskData) (*Response, error)
}
