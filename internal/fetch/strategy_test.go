package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestDirect(t *testing.T) {
	var gotCache string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCache = r.Header.Get("Cache-Control")
		w.Write([]byte(`{"lat":63.75,"lng":-68.5}`))
	}))
	defer srv.Close()

	payload, err := Direct(srv.Client()).Attempt(context.Background(), srv.URL+"/gps")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if string(payload) != `{"lat":63.75,"lng":-68.5}` {
		t.Errorf("payload = %s", payload)
	}
	if gotCache != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", gotCache)
	}
}

func TestDirect_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{}`},
		{"forbidden", http.StatusForbidden, `{}`},
		{"html body", http.StatusOK, `<html>blocked</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := Direct(srv.Client()).Attempt(context.Background(), srv.URL); err == nil {
				t.Error("Attempt should fail")
			}
		})
	}
}

func TestRelay_EscapesResource(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("quest")
		w.Write([]byte(`[{"lat":1,"lng":2}]`))
	}))
	defer srv.Close()

	resource := "https://feed.example/gps?cb=123"
	s := Relay("codetabs", srv.URL+"/v1/proxy?quest=", srv.Client())
	payload, err := s.Attempt(context.Background(), resource)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if gotQuery != resource {
		t.Errorf("relay saw quest=%q, want %q", gotQuery, resource)
	}
	if string(payload) != `[{"lat":1,"lng":2}]` {
		t.Errorf("payload = %s", payload)
	}
	if s.Method() != MethodRelayed {
		t.Errorf("Method() = %s, want relayed", s.Method())
	}
}

func TestEnvelopeRelay(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "unwraps contents",
			body: `{"contents":"{\"lat\":63.7,\"lng\":-68.5}","status":{"http_code":200}}`,
			want: `{"lat":63.7,"lng":-68.5}`,
		},
		{
			name: "no status block",
			body: `{"contents":"[1,2]"}`,
			want: `[1,2]`,
		},
		{name: "malformed contents", body: `{"contents":"not json"}`, wantErr: true},
		{name: "missing contents", body: `{"status":{"http_code":200}}`, wantErr: true},
		{name: "upstream error", body: `{"contents":"{}","status":{"http_code":503}}`, wantErr: true},
		{name: "envelope not json", body: `oops`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := url.ParseRequestURI(r.URL.Query().Get("url")); err != nil {
					t.Errorf("relay received bad url param: %v", err)
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := EnvelopeRelay("allorigins", srv.URL+"/get?url=", srv.Client())
			payload, err := s.Attempt(context.Background(), "https://feed.example/gps")
			if tt.wantErr {
				if err == nil {
					t.Errorf("Attempt() = %s, want error", payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("Attempt: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("payload = %s, want %s", payload, tt.want)
			}
		})
	}
}

func TestFetch_MalformedEnvelopeFallsThrough(t *testing.T) {
	envSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contents":"<html>"}`))
	}))
	defer envSrv.Close()
	plainSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat":5,"lng":6}`))
	}))
	defer plainSrv.Close()

	f := New([]Strategy{
		EnvelopeRelay("allorigins", envSrv.URL+"/get?url=", envSrv.Client()),
		Relay("codetabs", plainSrv.URL+"/?quest=", plainSrv.Client()),
	}, nil, testLogger())

	res, err := f.Fetch(context.Background(), "https://feed.example/gps")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Strategy != "codetabs" {
		t.Errorf("Strategy = %s, want codetabs", res.Strategy)
	}
}
