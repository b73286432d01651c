package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	booru "github.com/hikawa-dev/booru"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != UserAgent {
			t.Errorf("User-Agent = %q, want %q", got, UserAgent)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"id": 7, "name": "cat_ears"}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := GetJSON(context.Background(), srv.Client(), nil, "test", srv.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.ID != 7 || out.Name != "cat_ears" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, booru.ErrUnauthorized},
		{http.StatusForbidden, booru.ErrUnauthorized},
		{http.StatusNotFound, booru.ErrPostNotFound},
		{http.StatusTooManyRequests, booru.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := GetBody(context.Background(), srv.Client(), nil, "test", srv.URL)
			if !errors.Is(err, tt.want) {
				t.Errorf("GetBody() with %d error = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestStatusMappingHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := GetBody(context.Background(), srv.Client(), nil, "test", srv.URL)
	var httpErr *booru.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("GetBody() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", httpErr.StatusCode)
	}
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("<!DOCTYPE html>")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	var out map[string]any
	err := GetJSON(context.Background(), srv.Client(), nil, "somesite", srv.URL, &out)
	var decodeErr *booru.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("GetJSON() error = %v, want *DecodeError", err)
	}
	if decodeErr.Site != "somesite" {
		t.Errorf("DecodeError.Site = %q, want somesite", decodeErr.Site)
	}
}
