package errors

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	a := NewHTTPErrorAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":          {nil, http.StatusOK},
		"validation":   {ValidationError("x").Build(), http.StatusBadRequest},
		"not found":    {NewError(CategoryNotFound, "x").Build(), http.StatusNotFound},
		"classify":     {ClassifyError("x").Build(), http.StatusUnprocessableEntity},
		"source":       {SourceError("x").Build(), http.StatusBadGateway},
		"runtime":      {RuntimeError("x").Build(), http.StatusServiceUnavailable},
		"unclassified": {errors.New("x"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := a.StatusCodeFor(tc.err); got != tc.want {
				t.Fatalf("StatusCodeFor() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	a := NewHTTPErrorAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/phase", nil)

	a.WriteErrorResponse(rec, req, ClassifyError("unknown status tag").WithContext("status", "ERROR").Build())

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body HTTPErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "classify" || body.Error != "unknown status tag" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Details["status"] != "ERROR" {
		t.Fatalf("expected status detail, got %v", body.Details)
	}
}
