package gigscore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestHTTPSource(t *testing.T) {
	known := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, known.String()):
			_, _ = w.Write([]byte(`{"score": 455}`))
		case strings.Contains(r.URL.Path, "/v1/scores/"):
			http.NotFound(w, r)
		default:
			http.Error(w, "bad path", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 600, 0)
	ctx := context.Background()
	if got, err := src.Score(ctx, known); err != nil || got != 455 {
		t.Errorf("known account: %d, %v", got, err)
	}
	if got, err := src.Score(ctx, uuid.New()); err != nil || got != 600 {
		t.Errorf("unknown account should get the default: %d, %v", got, err)
	}
}

func TestHTTPSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := NewHTTPSource(srv.URL, 600, 0).Score(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
