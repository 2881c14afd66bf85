package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail bool
	}{
		{fmt.Errorf("%w: bad mapping", ErrValidation), http.StatusBadRequest, true},
		{fmt.Errorf("ledger: %w", ErrNotFound), http.StatusNotFound, true},
		{fmt.Errorf("%w: postgres", ErrUnavailable), http.StatusServiceUnavailable, true},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, true},
		{errors.New("secret connection string"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		var pd ProblemDetail
		if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
			t.Fatalf("decode problem: %v", err)
		}
		if pd.Status != tc.status {
			t.Fatalf("problem status %d, want %d", pd.Status, tc.status)
		}
		if tc.detail != (pd.Detail != "") {
			t.Fatalf("%v: unexpected detail %q", tc.err, pd.Detail)
		}
	}
}

func TestJSONWritesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"n": 1})
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"n":1`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
