package api

import (
	"strings"
	"testing"
)

func TestValidateTask(t *testing.T) {
	cfg := DefaultValidationConfig()
	cfg.MaxTaskSize = 32

	tests := []struct {
		name      string
		task      GenerationTask
		wantParam string
	}{
		{name: "valid", task: GenerationTask{Task: "reverse a string"}},
		{name: "valid with backend", task: GenerationTask{Task: "sort a list", Backend: "stub"}},
		{name: "empty", task: GenerationTask{}, wantParam: "task"},
		{name: "whitespace", task: GenerationTask{Task: "  \n\t"}, wantParam: "task"},
		{name: "too large", task: GenerationTask{Task: strings.Repeat("x", 33)}, wantParam: "task"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTask(tt.task, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("ValidateTask() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateTask() = nil, want error")
			}
			if err.Kind != ErrorKindInvalidRequest {
				t.Errorf("Kind = %q, want %q", err.Kind, ErrorKindInvalidRequest)
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateVerifyRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		req       VerifyRequest
		wantParam string
	}{
		{name: "code only", req: VerifyRequest{Code: "print(1)"}},
		{name: "with language", req: VerifyRequest{Code: "print(1)", Language: "python"}},
		{name: "explicit unknown", req: VerifyRequest{Code: "x", Language: "Unknown"}},
		{name: "empty code", req: VerifyRequest{Language: "python"}, wantParam: "code"},
		{name: "bogus language", req: VerifyRequest{Code: "x", Language: "cobol"}, wantParam: "language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVerifyRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("ValidateVerifyRequest() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateVerifyRequest() = nil, want error")
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateSummarizeRequest(t *testing.T) {
	cfg := DefaultValidationConfig()
	if err := ValidateSummarizeRequest(&SummarizeRequest{Transcript: "hello"}, cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateSummarizeRequest(&SummarizeRequest{}, cfg)
	if err == nil || err.Param != "transcript" {
		t.Errorf("ValidateSummarizeRequest(empty) = %v, want transcript error", err)
	}
}
