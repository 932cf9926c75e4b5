package discover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwestcott/sitehound/discover"
)

func TestArchiveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("matchType"); got != "domain" {
			t.Errorf("matchType = %q, want domain", got)
		}
		if got := r.URL.Query().Get("url"); got != "example.com/*" {
			t.Errorf("url param = %q, want example.com/*", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
			["com,example)/", "20200101000000", "https://example.com/", "text/html", "200", "AAAA", "1024"],
			["com,example)/old", "20150101000000", "https://example.com/old", "text/html", "200", "BBBB", "512"],
			["com,example)/old", "20160101000000", "https://example.com/old", "text/html", "200", "CCCC", "512"],
			["junk", "20160101000000", "ftp://example.com/skip", "text/html", "200", "DDDD", "1"]
		]`))
	}))
	defer srv.Close()

	client := discover.NewArchiveClient(srv.URL, time.Second, 100, "", zerolog.Nop())
	got := client.Search(context.Background(), "https://www.example.com/")
	want := []string{"https://example.com/", "https://example.com/old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %v, want %v", got, want)
	}
}

func TestArchiveSearchFailuresAreEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := discover.NewArchiveClient(srv.URL, time.Second, 100, "", zerolog.Nop())
			if got := client.Search(context.Background(), "example.com"); got != nil {
				t.Errorf("Search() = %v, want nil", got)
			}
		})
	}
}
