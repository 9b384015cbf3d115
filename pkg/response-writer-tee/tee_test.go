package tee

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecorderDefaultsToOK(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewResponseRecorder(rr)

	rec.Write([]byte("Hello world"))

	if rec.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", rec.StatusCode())
	}
	if rec.BytesWritten() != 11 {
		t.Fatalf("Bytes written %d", rec.BytesWritten())
	}
	if rr.Body.String() != "Hello world" {
		t.Fatalf("Body is %s", rr.Body.String())
	}
}

func TestRecorderKeepsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewResponseRecorder(rr)

	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.StatusCode() != http.StatusNotFound || rr.Code != http.StatusNotFound {
		t.Fatalf("Status is %d, client got %d", rec.StatusCode(), rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("Headers not passed through: %v", rr.Header())
	}
}

func TestRecorderWithoutWrites(t *testing.T) {
	rec := NewResponseRecorder(httptest.NewRecorder())
	if rec.StatusCode() != http.StatusOK || rec.BytesWritten() != 0 {
		t.Fatalf("Unexpected %d / %d", rec.StatusCode(), rec.BytesWritten())
	}
}
