package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"docuquery/pkg/domain"
	"docuquery/pkg/service"
	"docuquery/pkg/session"
	"docuquery/services/docuquery/internal/app"
)

const testSecret = "docuquery-test-secret"

func newTestServer(t *testing.T, client *redis.Client) (*httptest.Server, *app.App) {
	t.Helper()
	a, err := app.New(app.Config{
		JWTSecret: testSecret,
		Seed:      true,
		Redis:     client,
		Services: service.Config{
			Simulator: service.SimulatorConfig{Interval: time.Hour},
		},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, a
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, baseURL, email string) string {
	t.Helper()
	var resp authResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "", authRequest{Email: email, Password: "password"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", email, status)
	}
	if resp.Token == "" {
		t.Fatalf("login %s returned no token", email)
	}
	return resp.Token
}

func TestLoginMeLogout(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", authRequest{Email: "admin@example.com", Password: "wrong"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad password expected 401, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous me expected 401, got %d", status)
	}

	token := login(t, ts.URL, "admin@example.com")
	var me domain.Identity
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me expected 200, got %d", status)
	}
	if me.ID != "1" || me.Role != domain.RoleAdmin || me.Email != "admin@example.com" {
		t.Fatalf("unexpected identity: %+v", me)
	}

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("me after logout expected 401, got %d", status)
	}
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", token, authRequest{Email: "admin@example.com", Password: "nope"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401, got %d", status)
	}
	var me domain.Identity
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me expected 200, got %d", status)
	}
	if me.Email != "user@example.com" {
		t.Fatalf("session should be unchanged, got %+v", me)
	}
}

func TestSessionStoredInRedisSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ts, a := newTestServer(t, client)

	var resp authResponse
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/google", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("google login expected 200, got %d", status)
	}
	if resp.User.ID != "3" || resp.User.Name != "Google User" || resp.User.Picture == "" {
		t.Fatalf("unexpected google identity: %+v", resp.User)
	}
	clientID, err := a.ClientFromToken(resp.Token)
	if err != nil {
		t.Fatalf("client from token: %v", err)
	}
	raw, err := mr.Get(session.SlotKey(clientID))
	if err != nil {
		t.Fatalf("slot missing in redis: %v", err)
	}
	if !strings.Contains(raw, "google@example.com") || strings.Contains(raw, "password") {
		t.Fatalf("unexpected slot contents: %s", raw)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil, nil); status != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", status)
	}

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", resp.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", status)
	}
	if mr.Exists(session.SlotKey(clientID)) {
		t.Fatalf("slot should be cleared on logout")
	}
}

func TestRegister(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	body := registerRequest{Name: "Dup", Email: "user@example.com", Password: "x"}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", body, nil); status != http.StatusConflict {
		t.Fatalf("duplicate register expected 409, got %d", status)
	}

	var resp authResponse
	body = registerRequest{Name: "New Person", Email: "new@example.com", Password: "secret"}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", body, &resp); status != http.StatusCreated {
		t.Fatalf("register expected 201, got %d", status)
	}
	if resp.User.ID != "3" || resp.User.Role != domain.RoleUser {
		t.Fatalf("unexpected registered identity: %+v", resp.User)
	}
	login(t, ts.URL, "new@example.com")
}

func TestDocumentsUploadListDelete(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	var doc domain.Document
	meta := uploadMetadata{Title: "Budget", FileName: "budget.pdf", Size: 2048}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/documents", token, meta, &doc); status != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d", status)
	}
	if doc.ID != "6" || doc.Status != domain.DocumentProcessing || doc.Type != "PDF" || doc.UploadedBy != "Regular User" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	var list struct {
		Items []domain.Document `json:"items"`
		Count int               `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/documents?q=budget", token, nil, &list); status != http.StatusOK {
		t.Fatalf("list expected 200, got %d", status)
	}
	if list.Count != 1 || list.Items[0].ID != "6" {
		t.Fatalf("unexpected search result: %+v", list)
	}

	if status := doJSON(t, http.MethodDelete, ts.URL+"/api/documents/6", token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete expected 200, got %d", status)
	}
	if status := doJSON(t, http.MethodDelete, ts.URL+"/api/documents/6", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/documents", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous list expected 401, got %d", status)
	}
}

func TestMultipartUpload(t *testing.T) {
	ts, a := newTestServer(t, nil)
	token := login(t, ts.URL, "admin@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte(strings.Repeat("a", 7000)))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("multipart upload expected 201, got %d", resp.StatusCode)
	}
	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Title != "notes" || doc.Type != "TXT" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	list, err := a.Ingestions().List(context.Background(), "notes")
	if err != nil {
		t.Fatalf("list ingestions: %v", err)
	}
	if len(list) != 1 || list[0].TotalPages != 3 || list[0].Status != domain.IngestionInProgress {
		t.Fatalf("unexpected ingestion for upload: %+v", list)
	}
}

func TestIngestionRetry(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/ingestions/404/retry", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("retry unknown expected 404, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/ingestions/5/retry", token, nil, nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("GET retry expected 405, got %d", status)
	}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/ingestions/1/retry", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("retry completed expected 400, got %d", status)
	}
	var ing domain.Ingestion
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/ingestions/5/retry", token, nil, &ing); status != http.StatusOK {
		t.Fatalf("retry expected 200, got %d", status)
	}
	if ing.Status != domain.IngestionInProgress || ing.ProcessedPages != 0 || ing.EndTime != nil || ing.Error != "" {
		t.Fatalf("unexpected retried ingestion: %+v", ing)
	}
}

func TestIngestionStreamSendsInitialSnapshot(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/ingestions/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var snapshot []domain.Ingestion
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snapshot); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if len(snapshot) != 5 {
			t.Fatalf("expected 5 seeded ingestions, got %d", len(snapshot))
		}
		return
	}
	t.Fatalf("stream ended without a snapshot: %v", scanner.Err())
}

func TestAskAndHistory(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	if status := doJSON(t, http.MethodPost, ts.URL+"/api/qa", token, askRequest{Question: "  "}, nil); status != http.StatusBadRequest {
		t.Fatalf("empty question expected 400, got %d", status)
	}
	var answer domain.Answer
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/qa", token, askRequest{Question: "What was Q2 revenue?"}, &answer); status != http.StatusOK {
		t.Fatalf("ask expected 200, got %d", status)
	}
	if answer.Answer == "" || len(answer.Sources) == 0 || len(answer.Sources) > 3 {
		t.Fatalf("unexpected answer: %+v", answer)
	}

	var history struct {
		Items []domain.Message `json:"items"`
		Count int              `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/qa/history", token, nil, &history); status != http.StatusOK {
		t.Fatalf("history expected 200, got %d", status)
	}
	if history.Count != 2 || history.Items[0].Role != "user" || history.Items[1].Role != "assistant" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/qa/history?limit=x", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("bad limit expected 400, got %d", status)
	}
}

func TestDashboard(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "user@example.com")

	var summary domain.Summary
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", token, nil, &summary); status != http.StatusOK {
		t.Fatalf("dashboard expected 200, got %d", status)
	}
	if summary.TotalDocuments != 5 || len(summary.RecentIngestions) != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestAdminUsersRequireAdmin(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	userToken := login(t, ts.URL, "user@example.com")
	adminToken := login(t, ts.URL, "admin@example.com")

	if status := doJSON(t, http.MethodGet, ts.URL+"/api/admin/users", userToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin expected 403, got %d", status)
	}

	var list struct {
		Items []domain.User `json:"items"`
		Count int           `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/api/admin/users", adminToken, nil, &list); status != http.StatusOK {
		t.Fatalf("admin list expected 200, got %d", status)
	}
	if list.Count != 4 {
		t.Fatalf("expected 4 seeded users, got %d", list.Count)
	}

	dup := adminUserCreateRequest{Name: "Dup", Email: "ADMIN@example.com"}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/admin/users", adminToken, dup, nil); status != http.StatusConflict {
		t.Fatalf("duplicate email expected 409, got %d", status)
	}
	var created domain.User
	req := adminUserCreateRequest{Name: "Cameron Lee", Email: "cameron@example.com", Role: "admin"}
	if status := doJSON(t, http.MethodPost, ts.URL+"/api/admin/users", adminToken, req, &created); status != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", status)
	}
	if created.ID != "5" || created.Role != domain.RoleAdmin || created.Status != domain.StatusActive {
		t.Fatalf("unexpected created user: %+v", created)
	}

	var updated domain.User
	patch := map[string]string{"status": "inactive"}
	if status := doJSON(t, http.MethodPatch, ts.URL+"/api/admin/users/5", adminToken, patch, &updated); status != http.StatusOK {
		t.Fatalf("patch expected 200, got %d", status)
	}
	if updated.Status != domain.StatusInactive || updated.Name != "Cameron Lee" {
		t.Fatalf("unexpected updated user: %+v", updated)
	}
	if status := doJSON(t, http.MethodPatch, ts.URL+"/api/admin/users/5", adminToken, map[string]string{"role": "owner"}, nil); status != http.StatusBadRequest {
		t.Fatalf("invalid role expected 400, got %d", status)
	}

	if status := doJSON(t, http.MethodDelete, ts.URL+"/api/admin/users/5", adminToken, nil, nil); status != http.StatusOK {
		t.Fatalf("delete expected 200, got %d", status)
	}
	if status := doJSON(t, http.MethodDelete, ts.URL+"/api/admin/users/5", adminToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", status)
	}
}

func TestLoginRecordsLastLogin(t *testing.T) {
	ts, a := newTestServer(t, nil)
	before, err := a.Users().Get(context.Background(), "2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	login(t, ts.URL, "user@example.com")
	after, err := a.Users().Get(context.Background(), "2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if after.LastLogin == nil || (before.LastLogin != nil && !after.LastLogin.After(*before.LastLogin)) {
		t.Fatalf("lastLogin not updated: before=%v after=%v", before.LastLogin, after.LastLogin)
	}
}

func TestAPIPathsAreRouted(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	token := login(t, ts.URL, "admin@example.com")
	for _, path := range APIPaths() {
		url := ts.URL + strings.ReplaceAll(path, "{id}", "1")
		req, _ := http.NewRequest(http.MethodPut, url, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			t.Fatalf("path %s is not routed", path)
		}
	}
}
