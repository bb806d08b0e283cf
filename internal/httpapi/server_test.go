package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{}, &mockHost{})
	w := do(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestReadyz(t *testing.T) {
	w := do(t, NewMux(&mockService{}, &mockHost{ready: true}), http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	w := do(t, NewMux(&mockService{}, &mockHost{}), http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestModelsHandler(t *testing.T) {
	host := &mockHost{models: []types.ModelStatus{{Model: types.Model{ID: "m1"}}, {Model: types.Model{ID: "m2"}}}}
	w := do(t, NewMux(&mockService{}, host), http.MethodGet, "/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	body := decode[types.ModelsResponse](t, w)
	if len(body.Models) != 2 || body.Models[1].ID != "m2" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusHandler_CountsSessions(t *testing.T) {
	_, h := newStack(t, 1000)
	createSession(t, h, types.CreateSessionRequest{})
	createSession(t, h, types.CreateSessionRequest{})
	w := do(t, h, http.MethodGet, "/status", nil)
	body := decode[types.StatusResponse](t, w)
	if body.Sessions != 2 || body.Backend != "echo" || len(body.Models) != 2 {
		t.Fatalf("unexpected status: %+v", body)
	}
}

func TestParamsHandler(t *testing.T) {
	svc := &mockService{params: types.SamplingParams{DefaultTopK: 3, MaxTopK: 8, DefaultTemperature: 1, MaxTemperature: 2}}
	w := do(t, NewMux(svc, &mockHost{}), http.MethodGet, "/params", nil)
	if got := decode[types.SamplingParams](t, w); got != svc.params {
		t.Fatalf("params=%+v", got)
	}
}

func TestAvailabilityHandler_ParsesQuery(t *testing.T) {
	svc := &mockService{avail: types.AvailabilityDownloadable}
	w := do(t, NewMux(svc, &mockHost{}), http.MethodGet, "/availability?model=x&expected_inputs=image,+audio,&temperature=0.5&top_k=4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decode[types.AvailabilityResponse](t, w)
	if body.Model != "x" || body.Availability != types.AvailabilityDownloadable {
		t.Fatalf("body=%+v", body)
	}
	o := svc.lastOpts
	if len(o.ExpectedInputs) != 2 || o.ExpectedInputs[1] != types.ContentAudio {
		t.Fatalf("expected inputs=%v", o.ExpectedInputs)
	}
	if o.Temperature == nil || *o.Temperature != 0.5 || o.TopK == nil || *o.TopK != 4 {
		t.Fatalf("sampling not parsed: %+v", o)
	}
}

func TestAvailabilityHandler_BadNumbers(t *testing.T) {
	r := NewMux(&mockService{}, &mockHost{})
	for _, q := range []string{"temperature=hot", "top_k=1.5"} {
		if w := do(t, r, http.MethodGet, "/availability?"+q, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", q, w.Code)
		}
	}
}

func TestAvailabilityHandler_RealService(t *testing.T) {
	_, h := newStack(t, 1000)
	cases := map[string]types.Availability{
		"/availability":                                    types.AvailabilityAvailable,
		"/availability?model=remote":                       types.AvailabilityDownloadable,
		"/availability?model=nope":                         types.AvailabilityUnavailable,
		"/availability?model=m&expected_inputs=image":      types.AvailabilityAvailable,
		"/availability?model=remote&expected_inputs=image": types.AvailabilityUnavailable,
	}
	for path, want := range cases {
		w := do(t, h, http.MethodGet, path, nil)
		if got := decode[types.AvailabilityResponse](t, w).Availability; got != want {
			t.Fatalf("%s: got %s want %s", path, got, want)
		}
	}
	if w := do(t, h, http.MethodGet, "/availability?temperature=9", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range temperature status=%d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{Temperature: ptrF(0.5), TopK: ptrI(4)})
	if s.ID == "" || s.Model != "m" || s.Temperature != 0.5 || s.TopK != 4 || s.InputQuota != 1000 {
		t.Fatalf("session=%+v", s)
	}

	w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "hello there"})
	if w.Code != http.StatusOK {
		t.Fatalf("prompt status=%d body=%s", w.Code, w.Body.String())
	}
	pr := decode[types.PromptResponse](t, w)
	if pr.Completion != "You said: hello there" || pr.InputUsage == 0 {
		t.Fatalf("prompt=%+v", pr)
	}

	w = do(t, h, http.MethodGet, "/sessions/"+s.ID, nil)
	if got := decode[types.SessionResponse](t, w); got.InputUsage != pr.InputUsage {
		t.Fatalf("usage %d != %d", got.InputUsage, pr.InputUsage)
	}

	w = do(t, h, http.MethodPost, "/sessions/"+s.ID+"/append", map[string]any{"input": "more words"})
	if w.Code != http.StatusOK {
		t.Fatalf("append status=%d body=%s", w.Code, w.Body.String())
	}
	if got := decode[types.SessionResponse](t, w); got.InputUsage <= pr.InputUsage {
		t.Fatalf("append did not grow usage: %d", got.InputUsage)
	}

	w = do(t, h, http.MethodPost, "/sessions/"+s.ID+"/measure", map[string]any{"input": "one two three"})
	if got := decode[types.MeasureResponse](t, w); got.Tokens <= 3 {
		t.Fatalf("measure=%d", got.Tokens)
	}

	w = do(t, h, http.MethodPost, "/sessions/"+s.ID+"/clone", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("clone status=%d body=%s", w.Code, w.Body.String())
	}
	c := decode[types.SessionResponse](t, w)
	if c.ID == s.ID || c.InputUsage != 0 || c.TopK != 4 {
		t.Fatalf("clone=%+v", c)
	}

	w = do(t, h, http.MethodGet, "/sessions", nil)
	if got := decode[types.SessionsResponse](t, w); len(got.Sessions) != 2 {
		t.Fatalf("list=%+v", got)
	}

	if w := do(t, h, http.MethodDelete, "/sessions/"+s.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/sessions/"+s.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("second delete status=%d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/sessions/"+s.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "hi"}); w.Code != http.StatusNotFound {
		t.Fatalf("prompt after delete status=%d", w.Code)
	}
}

func TestPromptStreaming_NDJSON(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{})
	w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "stream me", "stream": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	lines := ndjsonLines[types.StreamLine](t, w)
	if len(lines) < 2 {
		t.Fatalf("lines=%+v", lines)
	}
	var joined strings.Builder
	for _, l := range lines[:len(lines)-1] {
		if l.Done || l.Error != nil {
			t.Fatalf("unexpected line %+v", l)
		}
		joined.WriteString(l.Token)
	}
	last := lines[len(lines)-1]
	if !last.Done || last.Completion != "You said: stream me" || joined.String() != last.Completion {
		t.Fatalf("last=%+v joined=%q", last, joined.String())
	}
	if last.InputUsage == 0 || last.InputQuota != 1000 {
		t.Fatalf("usage not reported: %+v", last)
	}
}

func TestPromptStreaming_WithResponseConstraint(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{})
	// The echo runtime answers with a schema instance, which satisfies the schema.
	w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{
		"input":               "give me json",
		"stream":              true,
		"response_constraint": map[string]any{"type": "object", "required": []string{"ok"}, "properties": map[string]any{"ok": map[string]any{"type": "boolean"}}},
	})
	lines := ndjsonLines[types.StreamLine](t, w)
	last := lines[len(lines)-1]
	if !last.Done || last.Completion != `{"ok":false}` {
		t.Fatalf("last=%+v", last)
	}
}

func TestPrompt_QuotaExceeded(t *testing.T) {
	_, h := newStack(t, 8)
	s := createSession(t, h, types.CreateSessionRequest{})
	w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "one two three four five six seven eight nine"})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if e := decode[types.ErrorResponse](t, w); e.Kind != "quota_exceeded" || e.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("error=%+v", e)
	}
	w = do(t, h, http.MethodGet, "/sessions/"+s.ID, nil)
	if got := decode[types.SessionResponse](t, w); got.InputUsage != 0 {
		t.Fatalf("usage changed after rejected prompt: %d", got.InputUsage)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	_, h := newStack(t, 1000)
	cases := []struct {
		name string
		req  types.CreateSessionRequest
		code int
		kind string
	}{
		{"temperature", types.CreateSessionRequest{Temperature: ptrF(5)}, http.StatusBadRequest, "invalid_argument"},
		{"capability", types.CreateSessionRequest{ExpectedInputs: []types.ContentType{types.ContentAudio}}, http.StatusUnprocessableEntity, "capability"},
		{"unknown model", types.CreateSessionRequest{Model: "nope"}, http.StatusServiceUnavailable, "unavailable"},
		{"system not first", types.CreateSessionRequest{InitialPrompts: []types.Message{
			types.UserText("hi"),
			{Role: types.RoleSystem, Parts: []types.ContentPart{types.TextPart("late")}},
		}}, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sessions", tc.req)
			if w.Code != tc.code {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			if e := decode[types.ErrorResponse](t, w); e.Kind != tc.kind {
				t.Fatalf("kind=%q", e.Kind)
			}
		})
	}
}

func TestCreate_MonitorStreamsProgress(t *testing.T) {
	_, h := newStack(t, 1000)
	w := do(t, h, http.MethodPost, "/sessions?monitor=true", types.CreateSessionRequest{Model: "remote"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	lines := ndjsonLines[types.ProgressEvent](t, w)
	if len(lines) < 3 {
		t.Fatalf("lines=%+v", lines)
	}
	if lines[0].Type != "progress" || lines[0].Loaded != 0 {
		t.Fatalf("first=%+v", lines[0])
	}
	prev := -1.0
	for _, l := range lines[:len(lines)-1] {
		if l.Type != "progress" || l.Loaded <= prev {
			t.Fatalf("progress not increasing: %+v", lines)
		}
		prev = l.Loaded
	}
	if prev != 1 {
		t.Fatalf("last progress=%v", prev)
	}
	last := lines[len(lines)-1]
	if last.Type != "session" || last.Session == nil || last.Session.Model != "remote" {
		t.Fatalf("last=%+v", last)
	}
}

func TestCreate_MonitorReportsError(t *testing.T) {
	_, h := newStack(t, 1000)
	w := do(t, h, http.MethodPost, "/sessions?monitor=1", types.CreateSessionRequest{Model: "nope"})
	lines := ndjsonLines[types.ProgressEvent](t, w)
	last := lines[len(lines)-1]
	if last.Type != "error" || last.Error == nil || last.Error.Code != http.StatusServiceUnavailable {
		t.Fatalf("last=%+v", last)
	}
}

func TestCreate_EmptyBodyUsesDefaults(t *testing.T) {
	_, h := newStack(t, 1000)
	w := do(t, h, http.MethodPost, "/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if s := decode[types.SessionResponse](t, w); s.Model != "m" || s.TopK != 3 {
		t.Fatalf("session=%+v", s)
	}
}

func TestBodyErrors(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{})
	if w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", w.Code)
	}

	req := newRequest(http.MethodPost, "/sessions/"+s.ID+"/prompt", `{"input":"hi"}`)
	req.Header.Set("Content-Type", "text/plain")
	if w := serve(h, req); w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("content-type status=%d", w.Code)
	}

	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	if w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": strings.Repeat("x", 64)}); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body status=%d", w.Code)
	}
}

func TestPrompt_InvalidInputKinds(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{})
	// Image input was not declared at creation.
	w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{
		"input": []map[string]any{{"role": "user", "content": []map[string]any{{"type": "image", "value": "aGk=", "media_type": "image/png"}}}},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	// System messages are only allowed in initial prompts.
	w = do(t, h, http.MethodPost, "/sessions/"+s.ID+"/append", map[string]any{
		"input": []map[string]any{{"role": "system", "content": "be brief"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("append system status=%d body=%s", w.Code, w.Body.String())
	}
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func TestUnloadHandler(t *testing.T) {
	host := &mockHost{}
	r := NewMux(&mockService{}, host)
	if w := do(t, r, http.MethodPost, "/models/m1/unload", nil); w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if len(host.unloaded) != 1 || host.unloaded[0] != "m1" {
		t.Fatalf("unloaded=%v", host.unloaded)
	}

	host.unloadErr = manager.ErrTooBusy("m1")
	if w := do(t, r, http.MethodPost, "/models/m1/unload", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("busy unload status=%d", w.Code)
	}
}

func TestUnloadHandler_RealManager(t *testing.T) {
	_, h := newStack(t, 1000)
	s := createSession(t, h, types.CreateSessionRequest{})
	do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "load it"})

	if w := do(t, h, http.MethodPost, "/models/m/unload", nil); w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	models := decode[types.ModelsResponse](t, do(t, h, http.MethodGet, "/models", nil))
	for _, m := range models.Models {
		if m.ID == "m" && m.Loaded {
			t.Fatalf("model still loaded after unload")
		}
	}
	// The session survives and reloads the model on demand.
	if w := do(t, h, http.MethodPost, "/sessions/"+s.ID+"/prompt", map[string]any{"input": "again"}); w.Code != http.StatusOK {
		t.Fatalf("prompt after unload status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/models/nope/unload", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown model status=%d", w.Code)
	}
}
