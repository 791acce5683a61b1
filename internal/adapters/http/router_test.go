package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

type chatServiceFake struct {
	chunks  []string
	outcome *domain.ChatOutcome
	err     error
	gotReq  domain.ChatRequest
}

func (f *chatServiceFake) Chat(_ context.Context, req domain.ChatRequest, emit func(string) error) (*domain.ChatOutcome, error) {
	f.gotReq = req
	for _, chunk := range f.chunks {
		if err := emit(chunk); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &domain.ChatOutcome{Category: domain.CategoryGeneral}, nil
}

type chatMetricsFake struct {
	category string
	mode     string
	sources  int
	streams  int
}

func (f *chatMetricsFake) RecordChatRequest(category, mode string) {
	f.category = category
	f.mode = mode
}

func (f *chatMetricsFake) RecordChatStream(_ string, sources int, _ time.Duration) {
	f.sources = sources
	f.streams++
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatStreamsAnswerWithSourcesTrailer(t *testing.T) {
	svc := &chatServiceFake{
		chunks: []string{"고주파 온열치료는 ", "보조 치료입니다."},
		outcome: &domain.ChatOutcome{
			Category: domain.CategoryCancer,
			Sources: []domain.Metadata{
				{"source": "https://youtu.be/abc", "title": "고주파 온열치료 설명"},
			},
		},
	}
	rt := NewRouter(svc, nil)

	rec := postChat(t, rt.Handler(), `{"query":"고주파 온열치료가 뭐야?","category":"auto"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	answer, trailer, found := strings.Cut(body, sourcesMarker)
	if !found {
		t.Fatalf("missing sources trailer in body: %q", body)
	}
	if answer != "고주파 온열치료는 보조 치료입니다." {
		t.Fatalf("streamed answer = %q", answer)
	}

	var sources []domain.Metadata
	if err := json.Unmarshal([]byte(trailer), &sources); err != nil {
		t.Fatalf("trailer is not valid json: %v", err)
	}
	if len(sources) != 1 || sources[0]["title"] != "고주파 온열치료 설명" {
		t.Fatalf("sources = %v", sources)
	}
}

func TestChatWithoutSourcesHasNoTrailer(t *testing.T) {
	svc := &chatServiceFake{
		chunks:  []string{"안녕하세요!"},
		outcome: &domain.ChatOutcome{Category: domain.CategoryGeneral},
	}
	rt := NewRouter(svc, nil)

	rec := postChat(t, rt.Handler(), `{"query":"안녕하세요"}`)
	if strings.Contains(rec.Body.String(), "__SOURCES__") {
		t.Fatalf("unexpected trailer: %q", rec.Body.String())
	}
	if rec.Body.String() != "안녕하세요!" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestChatPassesRequestThrough(t *testing.T) {
	svc := &chatServiceFake{chunks: []string{"답변"}}
	rt := NewRouter(svc, nil)

	postChat(t, rt.Handler(), `{"query":"질문","category":"nerve","history":[{"role":"user","content":"이전 질문"}]}`)
	if svc.gotReq.Category != "nerve" {
		t.Fatalf("category = %q", svc.gotReq.Category)
	}
	if len(svc.gotReq.History) != 1 || svc.gotReq.History[0].Content != "이전 질문" {
		t.Fatalf("history = %v", svc.gotReq.History)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	rt := NewRouter(&chatServiceFake{}, nil)
	handler := rt.Handler()

	if rec := postChat(t, handler, `{"query":"   "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank query status = %d", rec.Code)
	}
	if rec := postChat(t, handler, `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
}

func TestChatMapsErrorKindsBeforeStreaming(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("empty query")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrTemporary, "chat", errors.New("llm down")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrStore, "chat", errors.New("db down")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		rt := NewRouter(&chatServiceFake{err: tc.err}, nil)
		rec := postChat(t, rt.Handler(), `{"query":"질문"}`)
		if rec.Code != tc.wantStatus {
			t.Fatalf("err %v: status = %d, want %d", tc.err, rec.Code, tc.wantStatus)
		}
	}
}

func TestChatKeepsPartialOutputOnLateError(t *testing.T) {
	svc := &chatServiceFake{
		chunks: []string{"부분 답변"},
		err:    domain.WrapError(domain.ErrTemporary, "chat", errors.New("stream cut")),
	}
	rt := NewRouter(svc, nil)

	rec := postChat(t, rt.Handler(), `{"query":"질문"}`)
	if rec.Body.String() != "부분 답변" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("late error must not inject an error payload: %q", rec.Body.String())
	}
}

func TestChatRecordsMetrics(t *testing.T) {
	m := &chatMetricsFake{}
	svc := &chatServiceFake{
		chunks:  []string{"답변"},
		outcome: &domain.ChatOutcome{Category: domain.CategoryNerve, Fallback: true},
	}
	rt := NewRouter(svc, m)

	postChat(t, rt.Handler(), `{"query":"질문"}`)
	if m.category != "nerve" || m.mode != "fallback" {
		t.Fatalf("recorded %s/%s", m.category, m.mode)
	}
	if m.streams != 1 {
		t.Fatalf("streams = %d", m.streams)
	}
}

func TestHealthz(t *testing.T) {
	rt := NewRouter(&chatServiceFake{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("payload = %v", payload)
	}
}
