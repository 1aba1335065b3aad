package dirsdk

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Uptime is the service uptime (e.g. "1h23m45s").
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	// Checks is only set by /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
}

// PersonSuggestion is one /autocomplete result.
type PersonSuggestion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ErrorResponse is the JSON body of a failed JSON endpoint.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}
