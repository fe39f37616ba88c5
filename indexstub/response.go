package indexstub

import (
	"encoding/json"
	"net/http"
)

// Code is a machine-readable error code in the response envelope.
type Code string

const CodeInvalidArg Code = "E_INVALID_ARG"

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    Code        `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int64      `json:"count,omitempty"`
}

func serveJSON(w http.ResponseWriter, status int, resp Response) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp.Success = status >= 200 && status < 300
	return json.NewEncoder(w).Encode(resp)
}
