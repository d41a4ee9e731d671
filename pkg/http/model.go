package http

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"coin"`
	Message string                 `json:"message,omitempty" example:"coin is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ErrorBody is the flat error payload used where clients expect {"error": ...}.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
