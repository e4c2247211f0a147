// Package transport provides HTTP request/response types for the verification domain.
package transport

import "time"

// APIKeyRequest is the HTTP request body for storing the API key.
type APIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// APIKeyResponse reports the stored API key.
type APIKeyResponse struct {
	APIKey string `json:"apiKey"`
	Set    bool   `json:"set"`
}

// VerifyRequest is the HTTP request body for verifying the current compilation.
type VerifyRequest struct {
	Address      string `json:"address"`
	ContractName string `json:"contractName"`
}

// VerifyResponse identifies the attempt started by a verify request.
type VerifyResponse struct {
	AttemptID string `json:"attemptId"`
}

// ResultsResponse is the content of the results region.
type ResultsResponse struct {
	Text      string    `json:"text"`
	AttemptID string    `json:"attemptId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// CheckRequest is the HTTP request body for checking a verification job.
type CheckRequest struct {
	Network string `json:"network"`
	GUID    string `json:"guid"`
}

// CheckResponse carries the final status of a verification job.
type CheckResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
