package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/dialog"
	"github.com/starford/ansuz/internal/editor"
	"github.com/starford/ansuz/internal/recent"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

type stubDialogs struct {
	mu       sync.Mutex
	openPath string
	savePath string
	err      error
}

func (d *stubDialogs) OpenFile(dialog.Options) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	if d.openPath == "" {
		return "", dialog.ErrCancelled
	}
	return d.openPath, nil
}

func (d *stubDialogs) SaveFile(dialog.Options) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	if d.savePath == "" {
		return "", dialog.ErrCancelled
	}
	return d.savePath, nil
}

type stubShell struct {
	mu       sync.Mutex
	revealed []string
	opened   []string
}

func (s *stubShell) ShowItemInFolder(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revealed = append(s.revealed, path)
	return nil
}

func (s *stubShell) OpenPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, path)
	return nil
}

func (s *stubShell) OpenURL(context.Context, string) error { return nil }

type apiEnv struct {
	router  http.Handler
	ctrl    *editor.Controller
	dialogs *stubDialogs
	shell   *stubShell
	broker  *sse.Broker
	tasks   *Tasks
	windows *Windows
	recents *recent.Store
	docs    string
	quits   int
}

func newAPIEnv(t *testing.T, authEnabled bool, token string) *apiEnv {
	t.Helper()
	env := &apiEnv{
		dialogs: &stubDialogs{},
		shell:   &stubShell{},
		broker:  sse.NewBroker(time.Second),
		tasks:   NewTasks(context.Background()),
		windows: NewWindows(),
		recents: testutil.RecentStore(t, 5),
		docs:    testutil.DocsDir(t),
	}
	t.Cleanup(env.broker.Close)

	env.ctrl = editor.New(editor.NewState(), env.dialogs, storage.NewFS(),
		editor.WithShell(env.shell),
		editor.WithRecents(env.recents),
		editor.WithLogger(testutil.Logger()),
		editor.WithDocumentsDir(env.docs),
	)
	h := NewHandler(env.ctrl, render.NewGoldmark(), env.broker, env.tasks,
		WithWindows(env.windows),
		WithRecentLister(env.recents),
		WithQuit(func() { env.quits++ }),
		WithHandlerLogger(testutil.Logger()),
	)
	env.router = NewRouter(h, authEnabled, token)
	return env
}

const testHost = "127.0.0.1:7340"

// newRequest builds a request as the editor page sends it.
func newRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Host = testHost
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *apiEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := newRequest(method, target, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// subscribe registers a stream for window and returns a function that
// collects every event received until the background tasks have finished.
func (e *apiEnv) subscribe(t *testing.T, window string) func() []string {
	t.Helper()
	ch := e.broker.Subscribe(window)
	t.Cleanup(func() { e.broker.Unsubscribe(ch) })
	return func() []string {
		e.tasks.Wait()
		var got []string
		for {
			select {
			case msg := <-ch:
				got = append(got, string(msg))
			case <-time.After(100 * time.Millisecond):
				return got
			}
		}
	}
}

func findEvent(events []string, kind string) (string, bool) {
	for _, e := range events {
		if strings.HasPrefix(e, "event: "+kind+"\n") {
			return e, true
		}
	}
	return "", false
}

func windowURL(id, op string) string {
	return "/windows/" + id + "/" + op
}

func TestInvalidWindowID(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, windowURL("not-a-uuid", "open-dialog"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUnknownWindowID(t *testing.T) {
	env := newAPIEnv(t, false, "")
	for _, op := range []string{"open-dialog", "save-file", "events"} {
		method := http.MethodPost
		if op == "events" {
			method = http.MethodGet
		}
		w := env.do(t, method, windowURL(uuid.NewString(), op), map[string]string{"content": "x"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s with unissued window: status = %d, want 400", op, w.Code)
		}
	}
}

func TestForeignRequestsRejected(t *testing.T) {
	env := newAPIEnv(t, false, "")
	path := testutil.WriteDoc(t, env.docs, "a.md", "# mine")
	env.dialogs.openPath = path
	win := env.windows.Issue()
	env.do(t, http.MethodPost, windowURL(win, "open-dialog"), nil)
	env.tasks.Wait()

	tests := []struct {
		name    string
		mutate  func(*http.Request)
		want    int
		allowed bool
	}{
		{"text/plain body", func(r *http.Request) { r.Header.Set("Content-Type", "text/plain") }, http.StatusUnsupportedMediaType, false},
		{"no content type", func(r *http.Request) { r.Header.Del("Content-Type") }, http.StatusUnsupportedMediaType, false},
		{"foreign origin", func(r *http.Request) { r.Header.Set("Origin", "https://evil.example") }, http.StatusForbidden, false},
		{"null origin", func(r *http.Request) { r.Header.Set("Origin", "null") }, http.StatusForbidden, false},
		{"cross-site fetch", func(r *http.Request) { r.Header.Set("Sec-Fetch-Site", "cross-site") }, http.StatusForbidden, false},
		{"same-site fetch", func(r *http.Request) { r.Header.Set("Sec-Fetch-Site", "same-site") }, http.StatusForbidden, false},
		{"rebound host", func(r *http.Request) { r.Host = "evil.example:7340" }, http.StatusForbidden, false},
		{"same origin", func(r *http.Request) {
			r.Header.Set("Origin", "http://"+testHost)
			r.Header.Set("Sec-Fetch-Site", "same-origin")
		}, http.StatusAccepted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodPost, windowURL(win, "save-file"), strings.NewReader(`{"content":"changed"}`))
			tt.mutate(req)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			env.tasks.Wait()
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.allowed && string(data) != "# mine" {
				t.Errorf("rejected request changed the file: %q", data)
			}
			if tt.allowed && string(data) != "changed" {
				t.Errorf("accepted request did not save: %q", data)
			}
		})
	}
}

func TestHostGuard_AllowedHosts(t *testing.T) {
	tests := []struct {
		host    string
		allowed []string
		want    bool
	}{
		{"localhost:7340", nil, true},
		{"127.0.0.1:7340", nil, true},
		{"[::1]:7340", nil, true},
		{"LOCALHOST", nil, true},
		{"evil.example:7340", nil, false},
		{"192.168.1.5:7340", nil, false},
		{"editor.lan:7340", []string{"editor.lan"}, true},
	}
	for _, tt := range tests {
		if got := hostAllowed(tt.host, tt.allowed); got != tt.want {
			t.Errorf("hostAllowed(%q, %v) = %v, want %v", tt.host, tt.allowed, got, tt.want)
		}
	}
}

func TestOpenDialog_PushesFileOpened(t *testing.T) {
	env := newAPIEnv(t, false, "")
	path := testutil.WriteDoc(t, env.docs, "a.md", "# Hi")
	env.dialogs.openPath = path
	win := env.windows.Issue()
	other := env.windows.Issue()
	collect := env.subscribe(t, win)
	collectOther := env.subscribe(t, other)

	w := env.do(t, http.MethodPost, windowURL(win, "open-dialog"), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	events := collect()
	msg, ok := findEvent(events, EventFileOpened)
	if !ok {
		t.Fatalf("no file-opened event in %q", events)
	}
	if !strings.Contains(msg, `"content":"# Hi"`) || !strings.Contains(msg, `"path":"`+path+`"`) {
		t.Errorf("file-opened payload = %q", msg)
	}
	if msg, ok := findEvent(events, EventWindowTitle); !ok || !strings.Contains(msg, "a.md - Ansuz") {
		t.Errorf("window-title event = %q", msg)
	}
	if _, ok := findEvent(events, EventRepresentedFile); !ok {
		t.Error("missing represented-file event")
	}
	if got := collectOther(); len(got) != 0 {
		t.Errorf("other window received %q", got)
	}

	if env.ctrl.Snapshot().Path != path {
		t.Errorf("tracked path = %q", env.ctrl.Snapshot().Path)
	}
}

func TestOpenDialog_Cancelled(t *testing.T) {
	env := newAPIEnv(t, false, "")
	win := env.windows.Issue()
	collect := env.subscribe(t, win)

	w := env.do(t, http.MethodPost, windowURL(win, "open-dialog"), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if got := collect(); len(got) != 0 {
		t.Errorf("cancelled open pushed %q", got)
	}
}

func TestOpenDialog_ReadFailureNotifies(t *testing.T) {
	env := newAPIEnv(t, false, "")
	env.dialogs.openPath = filepath.Join(env.docs, "missing.md")
	win := env.windows.Issue()
	collect := env.subscribe(t, win)

	env.do(t, http.MethodPost, windowURL(win, "open-dialog"), nil)

	events := collect()
	msg, ok := findEvent(events, EventNotification)
	if !ok {
		t.Fatalf("no notification in %q", events)
	}
	if !strings.Contains(msg, `"operation":"open"`) {
		t.Errorf("notification = %q", msg)
	}
	if _, ok := findEvent(events, EventFileOpened); ok {
		t.Error("file-opened pushed after failed read")
	}
	if env.ctrl.Snapshot().Path != "" {
		t.Error("state changed after failed read")
	}
}

func TestSaveFile_NewDocument(t *testing.T) {
	env := newAPIEnv(t, false, "")
	dest := filepath.Join(env.docs, "new.md")
	env.dialogs.savePath = dest
	win := env.windows.Issue()
	collect := env.subscribe(t, win)

	w := env.do(t, http.MethodPost, windowURL(win, "save-file"), map[string]string{"content": "hello"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	events := collect()

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("file = %q", data)
	}
	if msg, ok := findEvent(events, EventDocumentEdited); !ok || !strings.Contains(msg, `"edited":false`) {
		t.Errorf("document-edited event = %q", msg)
	}

	w = env.do(t, http.MethodGet, "/state", nil)
	var state StateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Path != dest || !state.Saved || state.SyncedAt == nil {
		t.Errorf("state = %+v", state)
	}
}

func TestSaveFile_EmptyContentIsValid(t *testing.T) {
	env := newAPIEnv(t, false, "")
	dest := filepath.Join(env.docs, "empty.md")
	env.dialogs.savePath = dest

	w := env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "save-file"), map[string]string{"content": ""})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	env.tasks.Wait()
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestSaveFile_MissingContent(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "save-file"), map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSaveFile_WriteFailureNotifies(t *testing.T) {
	env := newAPIEnv(t, false, "")
	env.dialogs.savePath = filepath.Join(env.docs, "no-such-dir", "x.md")
	win := env.windows.Issue()
	collect := env.subscribe(t, win)

	env.do(t, http.MethodPost, windowURL(win, "save-file"), map[string]string{"content": "x"})

	if _, ok := findEvent(collect(), EventNotification); !ok {
		t.Error("expected notification after failed write")
	}
	if env.ctrl.Snapshot().Path != "" {
		t.Error("state changed after failed write")
	}
}

func TestExportHTMLDialog(t *testing.T) {
	env := newAPIEnv(t, false, "")
	dest := filepath.Join(env.docs, "out.html")
	env.dialogs.savePath = dest
	html := "<h1>Hi</h1>\n"

	w := env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "export-html-dialog"), map[string]string{"html": html})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	env.tasks.Wait()

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != html {
		t.Errorf("export = %q, want %q", data, html)
	}
	if env.ctrl.Snapshot().Path != "" {
		t.Error("export changed the tracked path")
	}
}

func TestExportHTMLDialog_MissingHTML(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "export-html-dialog"), map[string]string{"content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckUnsavedChanges(t *testing.T) {
	env := newAPIEnv(t, false, "")
	win := env.windows.Issue()

	tests := []struct {
		content string
		want    bool
	}{
		{"", false},
		{"draft", true},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPost, windowURL(win, "check-unsaved-changes"), map[string]string{"content": tt.content})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp UnsavedChangesResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Changed != tt.want {
			t.Errorf("changed(%q) = %v, want %v", tt.content, resp.Changed, tt.want)
		}
	}
}

func TestCheckUnsavedChanges_InvalidJSON(t *testing.T) {
	env := newAPIEnv(t, false, "")
	req := newRequest(http.MethodPost, windowURL(env.windows.Issue(), "check-unsaved-changes"), strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestShowInFolderAndOpenInDefaultApp(t *testing.T) {
	env := newAPIEnv(t, false, "")
	win := env.windows.Issue()

	// Nothing tracked yet.
	env.do(t, http.MethodPost, windowURL(win, "show-in-folder"), nil)
	env.do(t, http.MethodPost, windowURL(win, "open-in-default-app"), nil)
	env.tasks.Wait()
	if len(env.shell.revealed) != 0 || len(env.shell.opened) != 0 {
		t.Fatalf("shell called without a tracked file")
	}

	path := testutil.WriteDoc(t, env.docs, "a.md", "x")
	env.dialogs.openPath = path
	env.do(t, http.MethodPost, windowURL(win, "open-dialog"), nil)
	env.tasks.Wait()

	for _, op := range []string{"show-in-folder", "open-in-default-app"} {
		w := env.do(t, http.MethodPost, windowURL(win, op), nil)
		if w.Code != http.StatusAccepted {
			t.Errorf("%s status = %d", op, w.Code)
		}
	}
	env.tasks.Wait()
	if len(env.shell.revealed) != 1 || env.shell.revealed[0] != path {
		t.Errorf("revealed = %v", env.shell.revealed)
	}
	if len(env.shell.opened) != 1 || env.shell.opened[0] != path {
		t.Errorf("opened = %v", env.shell.opened)
	}
}

func TestOpenRecent(t *testing.T) {
	env := newAPIEnv(t, false, "")
	path := testutil.WriteDoc(t, env.docs, "r.md", "recent")
	win := env.windows.Issue()

	// Not in the list yet.
	collect := env.subscribe(t, win)
	env.do(t, http.MethodPost, windowURL(win, "open-recent"), map[string]string{"path": path})
	if _, ok := findEvent(collect(), EventNotification); !ok {
		t.Fatal("expected notification for unknown recent path")
	}

	if err := env.recents.Add(context.Background(), path, time.Now()); err != nil {
		t.Fatal(err)
	}
	collect = env.subscribe(t, win)
	w := env.do(t, http.MethodPost, windowURL(win, "open-recent"), map[string]string{"path": path})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if _, ok := findEvent(collect(), EventFileOpened); !ok {
		t.Error("expected file-opened for recent path")
	}
}

func TestOpenRecent_MissingPath(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "open-recent"), map[string]string{"path": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListRecent(t *testing.T) {
	env := newAPIEnv(t, false, "")

	w := env.do(t, http.MethodGet, "/recent", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"documents":[]`) {
		t.Errorf("empty list body = %s", w.Body.String())
	}

	path := testutil.WriteDoc(t, env.docs, "a.md", "x")
	env.dialogs.openPath = path
	env.do(t, http.MethodPost, windowURL(env.windows.Issue(), "open-dialog"), nil)
	env.tasks.Wait()

	w = env.do(t, http.MethodGet, "/recent", nil)
	var resp RecentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Path != path {
		t.Errorf("documents = %+v", resp.Documents)
	}
}

func TestRender(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, "/render", map[string]string{"markdown": "# Title\n\n<script>x()</script>"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RenderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.HTML, "<h1") || strings.Contains(resp.HTML, "<script>") {
		t.Errorf("html = %q", resp.HTML)
	}
}

func TestRender_RendererError(t *testing.T) {
	env := newAPIEnv(t, false, "")
	failing := render.Func(func(string) (string, error) { return "", errors.New("boom") })
	h := NewHandler(env.ctrl, failing, env.broker, env.tasks, WithHandlerLogger(testutil.Logger()))
	router := NewRouter(h, false, "")

	req := newRequest(http.MethodPost, "/render", strings.NewReader(`{"markdown":"x"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestQuit(t *testing.T) {
	env := newAPIEnv(t, false, "")
	w := env.do(t, http.MethodPost, "/quit", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if env.quits != 1 {
		t.Errorf("quit called %d times", env.quits)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newAPIEnv(t, true, "secret")

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer secret", "", http.StatusOK},
		{"cookie", "", "secret", http.StatusOK},
		{"wrong cookie", "", "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestEventsStream(t *testing.T) {
	env := newAPIEnv(t, false, "")
	path := testutil.WriteDoc(t, env.docs, "s.md", "streamed")
	env.dialogs.openPath = path
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	win := env.windows.Issue()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+windowURL(win, "events"), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.broker.ClientCount(win) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	post, err := http.Post(srv.URL+windowURL(win, "open-dialog"), "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if scanner.Text() == "event: "+EventFileOpened {
			if !scanner.Scan() {
				break
			}
			if !strings.Contains(scanner.Text(), `"content":"streamed"`) {
				t.Errorf("data line = %q", scanner.Text())
			}
			return
		}
	}
	t.Fatalf("stream ended without file-opened: %v", scanner.Err())
}
