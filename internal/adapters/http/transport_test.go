package http

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/outqueue/internal/ports"
	"github.com/bft-labs/outqueue/pkg/log"
)

func events(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestTransport_PostsJSONArray(t *testing.T) {
	var (
		gotBody   string
		gotCT     string
		gotKey    string
		gotPath   string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotCT = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewTransport(srv.Client(), log.NewNoopLogger())
	res := tr.Send(context.Background(), ports.Request{
		URL:    srv.URL + CollectorPath,
		Events: events(`{"e":"pv"}`, `{"e":"se"}`),
		APIKey: "secret",
	})

	if res.Outcome != ports.OutcomeSuccess || res.StatusCode != 200 {
		t.Fatalf("result = %+v", res)
	}
	if gotMethod != http.MethodPost || gotPath != CollectorPath {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody != `[{"e":"pv"},{"e":"se"}]` {
		t.Errorf("body = %s", gotBody)
	}
	if gotCT != "application/json; charset=UTF-8" {
		t.Errorf("content-type = %q", gotCT)
	}
	if gotKey != "secret" {
		t.Errorf("x-api-key = %q", gotKey)
	}
}

func TestTransport_BodyKeepsEventBytes(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	raw := []string{`{"html":"<b>a&b</b>"}`, `"x"`, `42`}
	tr := NewTransport(srv.Client(), log.NewNoopLogger())
	res := tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(raw...)})
	if res.Outcome != ports.OutcomeSuccess {
		t.Fatalf("result = %+v", res)
	}

	want := "[" + strings.Join(raw, ",") + "]"
	if gotBody != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
}

func TestTransport_EmptyAndInvalidBatch(t *testing.T) {
	body, err := encodeBatch(nil)
	if err != nil || string(body) != "[]" {
		t.Errorf("encodeBatch(nil) = %q, %v", body, err)
	}
	if _, err := encodeBatch(events(`{"e":"pv"}`, `{"e":`)); err == nil {
		t.Error("encodeBatch() expected error for truncated event")
	}
}

func TestTransport_OmitsEmptyAPIKey(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-Api-Key"]
	}))
	defer srv.Close()

	tr := NewTransport(srv.Client(), log.NewNoopLogger())
	tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(`{}`)})
	if present {
		t.Error("x-api-key header sent without a key")
	}
}

func TestTransport_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ports.Outcome
	}{
		{200, ports.OutcomeSuccess},
		{204, ports.OutcomeSuccess},
		{304, ports.OutcomeSuccess},
		{399, ports.OutcomeSuccess},
		{400, ports.OutcomeFailure},
		{404, ports.OutcomeFailure},
		{500, ports.OutcomeFailure},
		{503, ports.OutcomeFailure},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tr := NewTransport(srv.Client(), log.NewNoopLogger())
			res := tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(`{}`)})
			if res.Outcome != tt.want {
				t.Errorf("status %d: outcome = %v, want %v", tt.status, res.Outcome, tt.want)
			}
			if res.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.status)
			}
		})
	}
}

func TestTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tr := NewTransport(srv.Client(), log.NewNoopLogger())
	res := tr.Send(ctx, ports.Request{URL: srv.URL, Events: events(`{}`)})
	if res.Outcome != ports.OutcomeTimeout {
		t.Fatalf("outcome = %v, want timeout (err %v)", res.Outcome, res.Err)
	}
}

func TestTransport_ConnectionRefusedIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	tr := NewTransport(http.DefaultClient, log.NewNoopLogger())
	res := tr.Send(context.Background(), ports.Request{URL: addr, Events: events(`{}`)})
	if res.Outcome != ports.OutcomeAmbiguous {
		t.Fatalf("outcome = %v, want ambiguous", res.Outcome)
	}
	if res.Err == nil {
		t.Error("expected an error")
	}
}

func TestTransport_Gzip(t *testing.T) {
	var body, encoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(zr)
		body = string(b)
	}))
	defer srv.Close()

	tr := NewTransport(srv.Client(), log.NewNoopLogger(), WithGzip(true))
	res := tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(`{"e":"pv"}`)})
	if res.Outcome != ports.OutcomeSuccess {
		t.Fatalf("result = %+v", res)
	}
	if encoding != "gzip" || body != `[{"e":"pv"}]` {
		t.Errorf("encoding = %q body = %q", encoding, body)
	}
}

func TestTransport_CookiesOnlyWithCredentials(t *testing.T) {
	var cookies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sp")
		if err == nil {
			cookies = append(cookies, c.Value)
		} else {
			cookies = append(cookies, "")
		}
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	u, _ := url.Parse(srv.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "sp", Value: "nuid"}})

	tr := NewTransport(srv.Client(), log.NewNoopLogger(), WithCookieJar(jar))
	tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(`{}`)})
	tr.Send(context.Background(), ports.Request{URL: srv.URL, Events: events(`{}`), SecureCredentials: true})

	if strings.Join(cookies, ",") != ",nuid" {
		t.Errorf("cookies seen = %q", cookies)
	}
}
