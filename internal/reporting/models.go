package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Business isolation: BusinessID is required.

type CallsSummaryRequest struct {
	BusinessID string    `json:"business_id"`
	Range      TimeRange `json:"range"`
}

type CallsSummary struct {
	BusinessID string `json:"business_id"`

	TotalCalls    int `json:"total_calls"`
	AnsweredCalls int `json:"answered_calls"`
	MissedCalls   int `json:"missed_calls"`
	OtherCalls    int `json:"other_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// LeadFunnelRequest requests the lead qualification funnel.

type LeadFunnelRequest struct {
	BusinessID string    `json:"business_id"`
	Range      TimeRange `json:"range"`
}

type LeadFunnel struct {
	BusinessID string `json:"business_id"`

	TotalLeads     int `json:"total_leads"`
	SmsStarted     int `json:"sms_started"`
	Responded      int `json:"responded"`
	Completed      int `json:"completed"`
	BillingBlocked int `json:"billing_blocked"`

	ByStatus map[string]int `json:"by_status"`

	ResponseRate   float64 `json:"response_rate"`
	CompletionRate float64 `json:"completion_rate"`
}
