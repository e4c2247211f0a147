package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_SubmitVerification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/contracts/verify" {
			t.Errorf("Expected path /v1/contracts/verify, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-API-Key") != "my-api-key" {
			t.Errorf("Expected X-API-Key header, got %s", r.Header.Get("X-API-Key"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if body["contract_address"] != "0xabc" {
			t.Errorf("Expected contract_address 0xabc, got %v", body["contract_address"])
		}
		if body["compiler"] != "v0.6.2+commit.1234abcd" {
			t.Errorf("Expected compiler v0.6.2+commit.1234abcd, got %v", body["compiler"])
		}
		if body["optimization"] != true {
			t.Errorf("Expected optimization true, got %v", body["optimization"])
		}
		if body["runs"] != float64(200) {
			t.Errorf("Expected runs 200, got %v", body["runs"])
		}

		json.NewEncoder(w).Encode(map[string]any{"success": true, "guid": "job-1"})
	}))
	defer server.Close()

	runs := 200
	c := New()
	resp, err := c.SubmitVerification(context.Background(), server.URL+"/v1/contracts/verify", "my-api-key", VerifyRequest{
		ContractAddress: "0xabc",
		Source:          "contract Token {}",
		ContractName:    "Token",
		Compiler:        "v0.6.2+commit.1234abcd",
		Optimization:    true,
		Runs:            &runs,
	})
	if err != nil {
		t.Fatalf("SubmitVerification() error = %v", err)
	}
	if !resp.Success {
		t.Error("SubmitVerification().Success = false, want true")
	}
	if resp.GUID != "job-1" {
		t.Errorf("SubmitVerification().GUID = %s, want job-1", resp.GUID)
	}
}

func TestClient_SubmitVerification_OmitsMissingRuns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "" {
			t.Errorf("Expected no X-API-Key header, got %s", r.Header.Get("X-API-Key"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["runs"]; ok {
			t.Errorf("Expected runs to be omitted, got %v", body["runs"])
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	_, err := New().SubmitVerification(context.Background(), server.URL, "", VerifyRequest{ContractAddress: "0xabc"})
	if err != nil {
		t.Fatalf("SubmitVerification() error = %v", err)
	}
}

func TestClient_SubmitVerification_RejectedWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"error_code": "BYTECODE_MISMATCH"},
		})
	}))
	defer server.Close()

	resp, err := New().SubmitVerification(context.Background(), server.URL, "", VerifyRequest{})
	if err != nil {
		t.Fatalf("SubmitVerification() error = %v", err)
	}
	if resp.Success {
		t.Error("SubmitVerification().Success = true, want false")
	}
	if resp.Error == nil || resp.Error.ErrorCode != "BYTECODE_MISMATCH" {
		t.Errorf("SubmitVerification().Error = %+v, want BYTECODE_MISMATCH", resp.Error)
	}
}

func TestClient_CheckVerifyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("guid") != "job-1" {
			t.Errorf("Expected guid job-1, got %s", q.Get("guid"))
		}
		if q.Get("module") != "contract" {
			t.Errorf("Expected module contract, got %s", q.Get("module"))
		}
		if q.Get("action") != "checkverifystatus" {
			t.Errorf("Expected action checkverifystatus, got %s", q.Get("action"))
		}

		json.NewEncoder(w).Encode(map[string]string{
			"message": "OK",
			"result":  "Pass - Verified",
		})
	}))
	defer server.Close()

	resp, err := New().CheckVerifyStatus(context.Background(), server.URL, "job-1")
	if err != nil {
		t.Fatalf("CheckVerifyStatus() error = %v", err)
	}
	if resp.Message != "OK" {
		t.Errorf("CheckVerifyStatus().Message = %s, want OK", resp.Message)
	}
	if resp.Result != "Pass - Verified" {
		t.Errorf("CheckVerifyStatus().Result = %s, want Pass - Verified", resp.Result)
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := New().CheckVerifyStatus(context.Background(), server.URL, "job-1")
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", apiErr.StatusCode)
	}
}

func TestClient_JSONErrorBodyWithoutPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal server error"}`))
	}))
	defer server.Close()

	resp, err := New().SubmitVerification(context.Background(), server.URL, "", VerifyRequest{})
	if err == nil {
		t.Fatalf("Expected error for 500 response, got %+v", resp)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", apiErr.StatusCode)
	}
	if apiErr.Error() != `HTTP 500: {"message":"internal server error"}` {
		t.Errorf("Unexpected error text %q", apiErr.Error())
	}

	_, err = New().CheckVerifyStatus(context.Background(), server.URL, "job-1")
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError from CheckVerifyStatus, got %v", err)
	}
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := New().SubmitVerification(context.Background(), server.URL, "", VerifyRequest{})
	if err == nil {
		t.Fatal("Expected error for malformed body")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("Expected parse error, got APIError %v", apiErr)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := New(WithTimeout(20*time.Millisecond)).CheckVerifyStatus(context.Background(), server.URL, "job-1")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestClient_UserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "contraverify/test" {
			t.Errorf("Expected User-Agent contraverify/test, got %s", r.Header.Get("User-Agent"))
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "OK", "result": "done"})
	}))
	defer server.Close()

	_, err := New(WithUserAgent("contraverify/test")).CheckVerifyStatus(context.Background(), server.URL, "job-1")
	if err != nil {
		t.Fatalf("CheckVerifyStatus() error = %v", err)
	}
}
