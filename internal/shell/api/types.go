package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// FlagsRequest carries the deployment options for a stack.
type FlagsRequest struct {
	AppName             string `json:"app_name"`
	Environment         string `json:"environment,omitempty"`
	Region              string `json:"region,omitempty"`
	PHPVersion          string `json:"php_version,omitempty"`
	UseMySQL            bool   `json:"use_mysql,omitempty"`
	UseVPC              bool   `json:"use_vpc,omitempty"`
	UseOctane           bool   `json:"use_octane,omitempty"`
	UseAPIWarmer        bool   `json:"use_api_warmer,omitempty"`
	UseArtisanScheduler bool   `json:"use_artisan_scheduler,omitempty"`
	APIWarmRate         string `json:"api_warm_rate,omitempty"`
	ArtisanScheduleRate string `json:"artisan_schedule_rate,omitempty"`
}

// CreateStackRequest is the request body for registering a stack.
type CreateStackRequest struct {
	Name  string       `json:"name"`
	Flags FlagsRequest `json:"flags"`
}

// PreviewRequest is the request body for an offline composition preview.
type PreviewRequest struct {
	Flags FlagsRequest `json:"flags"`
}

// =============================================================================
// Response Types
// =============================================================================

// StackResponse is the response for stack operations.
type StackResponse struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Flags        FlagsRequest      `json:"flags"`
	Status       string            `json:"status"`
	Exports      map[string]string `json:"exports,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ListStacksResponse is the response for listing stacks. Count is the
// number of stacks in this page, not the table total.
type ListStacksResponse struct {
	Stacks []StackResponse `json:"stacks"`
	Count  int             `json:"count"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// PreviewResponse is the response for a composition preview.
type PreviewResponse struct {
	Exports map[string]string `json:"exports"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
