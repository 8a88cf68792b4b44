package gateway

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jiaxwu/rvbridge/rvpb"
)

// sink 收集网关推送的事件
type sink struct {
	mu     sync.Mutex
	events []rvpb.Event
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var e rvpb.Event
	if err := rvpb.Unmarshal(b, &e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *sink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

func post(t *testing.T, url string, m rvpb.Message) *http.Response {
	t.Helper()
	b, err := rvpb.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v\n", err)
	}
	res, err := http.Post(url, "application/octet-stream", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v\n", url, err)
	}
	return res
}

func setup(t *testing.T) (*Server, *httptest.Server, *sink, string) {
	gw := New()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	events := &sink{}
	cb := httptest.NewServer(events)
	t.Cleanup(cb.Close)
	return gw, srv, events, cb.URL + "/events"
}

func TestServer_Init(t *testing.T) {
	gw, srv, _, cb := setup(t)
	gw.SetCanCollectPII(true)
	res := post(t, srv.URL+defaultBasePath+"init", &rvpb.InitRequest{AdUnitID: "unit1", Callback: cb})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("init status %s\n", res.Status)
	}
	b, _ := io.ReadAll(res.Body)
	var out rvpb.InitResponse
	if err := rvpb.Unmarshal(b, &out); err != nil || !out.CanCollectPII {
		t.Fatalf("init response %+v %v\n", out, err)
	}
	if gw.Inits() != 1 {
		t.Fatalf("inits = %d\n", gw.Inits())
	}
}

func TestServer_LoadAndShow(t *testing.T) {
	gw, srv, events, cb := setup(t)
	post(t, srv.URL+defaultBasePath+"load", &rvpb.LoadRequest{AdUnitID: "unit1", Callback: cb}).Body.Close()
	gw.Wait()
	post(t, srv.URL+defaultBasePath+"show", &rvpb.ShowRequest{AdUnitID: "unit1", Callback: cb}).Body.Close()
	gw.Wait()

	want := []string{rvpb.EventLoadSuccess, rvpb.EventStarted, rvpb.EventCompleted, rvpb.EventClosed}
	got := events.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v\n", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s\n", i, got[i], want[i])
		}
	}
	events.mu.Lock()
	completed := events.events[2]
	events.mu.Unlock()
	if completed.Reward.Label != "coins" || completed.Reward.Amount != 10 || completed.AdUnitIDs[0] != "unit1" {
		t.Fatalf("completed = %+v\n", completed)
	}

	// 同一个广告只能展示一次
	post(t, srv.URL+defaultBasePath+"show", &rvpb.ShowRequest{AdUnitID: "unit1", Callback: cb}).Body.Close()
	gw.Wait()
	if got := events.types(); got[len(got)-1] != rvpb.EventPlaybackError {
		t.Fatalf("second show events = %v\n", got)
	}
}

func TestServer_NoFill(t *testing.T) {
	gw, srv, events, cb := setup(t)
	gw.SetNoFill("empty")
	post(t, srv.URL+defaultBasePath+"load", &rvpb.LoadRequest{AdUnitID: "empty", Callback: cb}).Body.Close()
	gw.Wait()
	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.events) != 1 || events.events[0].Type != rvpb.EventLoadFailure || events.events[0].ErrorCode != "no_fill" {
		t.Fatalf("events = %+v\n", events.events)
	}
}

func TestServer_BadRequests(t *testing.T) {
	_, srv, _, _ := setup(t)
	res, err := http.Get(srv.URL + defaultBasePath + "load")
	if err != nil {
		t.Fatalf("get: %v\n", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("get status %s\n", res.Status)
	}
	res = post(t, srv.URL+defaultBasePath+"unknown", &rvpb.InitRequest{AdUnitID: "a"})
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown op status %s\n", res.Status)
	}
	res = post(t, srv.URL+defaultBasePath+"load", &rvpb.InitRequest{AdUnitID: "a"})
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("load without callback status %s\n", res.Status)
	}
}

func TestServer_RequestTooLarge(t *testing.T) {
	gw := New()
	body := bytes.Repeat([]byte{'x'}, maxRequestBytes+1)
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest(http.MethodPost, defaultBasePath+"load", bytes.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized request status %d\n", w.Code)
	}
}
