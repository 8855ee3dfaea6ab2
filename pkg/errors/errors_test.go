package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		code        Code
		status      int
		retryable   bool
		showMessage bool
		showDetails bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, showMessage: true, showDetails: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, showMessage: true},
		{code: CodeNotFound, status: http.StatusNotFound, showMessage: true},
		{code: CodeConflict, status: http.StatusConflict, showMessage: true},
		{code: CodeNotConnected, status: http.StatusPreconditionFailed, showMessage: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, retryable: true, showMessage: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, showDetails: true},
		{code: "SOMETHING_UNKNOWN", status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		class := ClassOf(tt.code)
		if class.Status != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, class.Status)
		}
		if class.Retryable != tt.retryable || class.ShowMessage != tt.showMessage || class.ShowDetails != tt.showDetails {
			t.Fatalf("code %s unexpected class %+v", tt.code, class)
		}
		if class.Public == "" {
			t.Fatalf("code %s has no public message", tt.code)
		}
	}
}

func TestErrorString(t *testing.T) {
	if got := New(CodeNotFound, "item missing").Error(); got != "NOT_FOUND: item missing" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := New(CodeConflict, "").Error(); got != "CONFLICT" {
		t.Fatalf("unexpected bare error string %q", got)
	}

	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Message() != "" || nilErr.WithDetails("x") != nil {
		t.Fatalf("nil *Error should be inert")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx").WithDetails(map[string]any{"field": "quantity"})
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if Wrap(CodeValidation, nil, "bad").Unwrap() != nil {
		t.Fatalf("nil cause should stay nil")
	}
}

func TestIsCodeAndRetryable(t *testing.T) {
	err := fmt.Errorf("sync: %w", Wrap(CodeDependency, stdErrors.New("timeout"), "list items"))
	if !IsCode(err, CodeDependency) || IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode mismatch for %v", err)
	}
	if IsCode(stdErrors.New("plain"), "") {
		t.Fatalf("untyped errors carry no code")
	}
	if !IsRetryable(err) {
		t.Fatalf("dependency errors should be retryable")
	}
	if IsRetryable(New(CodeValidation, "bad")) || IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("validation and untyped errors should not be retryable")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestLogFields(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "ux_notifications_dedup", TableName: "notifications"}
	err := fmt.Errorf("record: %w", Wrap(CodeConflict, pg, "duplicate notification"))

	fields := LogFields(err)
	if fields["error_code"] != "CONFLICT" {
		t.Fatalf("expected error_code, got %v", fields)
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "ux_notifications_dedup" {
		t.Fatalf("expected pg diagnostics, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted")
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 3 {
		t.Fatalf("expected chain of 3, got %v", fields["error_chain"])
	}
	if len(LogFields(nil)) != 0 {
		t.Fatalf("expected no fields for nil error")
	}
}
