package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/activity"
	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/realtime"
	"github.com/erazemk/zaloga/internal/service"
	"github.com/erazemk/zaloga/internal/storage"
	"github.com/erazemk/zaloga/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

type testServer struct {
	url string
	db  *sqlx.DB
	hub *realtime.Hub
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	blobs, err := storage.NewDisk(t.TempDir(), "")
	require.NoError(t, err)

	versions := &cache.Versions{}
	logger := activity.New(database, 64, func() { versions.Bump(cache.Activity, cache.Stats) })
	t.Cleanup(logger.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub()
	hub.Follow(versions)
	go hub.Run(ctx)

	router := NewRouter(Deps{
		DB:        database,
		Service:   service.New(database, blobs, logger, versions),
		Hub:       hub,
		Storage:   blobs.Handler(),
		JWTSecret: testJWTSecret,
	})
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, db: database, hub: hub}
}

// user creates an account and returns a token for it.
func (s *testServer) user(t *testing.T, email string, role model.Role) string {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	_, err = store.CreateUser(context.Background(), s.db, email, activity.DisplayName(email), hash, role)
	require.NoError(t, err)
	return s.login(t, email, testPassword)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func (s *testServer) createItem(t *testing.T, token, name string, qty int) model.InventoryItem {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/inventory", token, map[string]any{
		"name":       name,
		"category":   "Cement",
		"location":   "Warehouse A",
		"quantity":   qty,
		"unit_price": "12.50",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var item model.InventoryItem
	decode(t, resp, &item)
	return item
}

func signature(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for x := 5; x < 35; x++ {
		img.Set(x, 10, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestLoginEndpoint(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)

	resp := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me meResponse
	decode(t, resp, &me)
	assert.Equal(t, "ana@example.com", me.Email)
	assert.Equal(t, "ana", me.Username)
	assert.Equal(t, model.RoleAdmin, me.Role)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleViewer)

	resp := s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleViewer)

	resp := s.do(t, http.MethodPut, "/api/auth/password", token, changePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpassword"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/auth/password", token, changePasswordRequest{CurrentPassword: testPassword, NewPassword: "newpassword"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.login(t, "ana@example.com", "newpassword")
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/api/inventory", "/api/dashboard", "/api/borrowed"} {
		resp := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := s.do(t, http.MethodGet, "/api/inventory", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleBasedAccess(t *testing.T) {
	s := setupTestServer(t)
	viewer := s.user(t, "vid@example.com", model.RoleViewer)
	admin := s.user(t, "ana@example.com", model.RoleAdmin)

	resp := s.do(t, http.MethodPost, "/api/inventory", viewer, map[string]any{"name": "Test"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/inventory", viewer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/users", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/export", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoleChangeAppliesToExistingToken(t *testing.T) {
	s := setupTestServer(t)
	root := s.user(t, "root@example.com", model.RoleSuperadmin)
	token := s.user(t, "vid@example.com", model.RoleViewer)

	resp := s.do(t, http.MethodPost, "/api/inventory", token, map[string]any{"name": "Sand", "category": "c", "location": "l"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	target, err := store.GetUserByEmail(context.Background(), s.db, "vid@example.com")
	require.NoError(t, err)
	resp = s.do(t, http.MethodPut, "/api/users/"+target.ID+"/role", root, updateRoleRequest{Role: model.RoleAdmin})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.createItem(t, token, "Sand", 5)
}

func TestUsersAPIFlow(t *testing.T) {
	s := setupTestServer(t)
	root := s.user(t, "root@example.com", model.RoleSuperadmin)

	resp := s.do(t, http.MethodPost, "/api/users", root, service.UserInput{Email: "new@example.com", Password: testPassword, Role: model.RoleAdmin})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.User
	decode(t, resp, &created)

	resp = s.do(t, http.MethodPost, "/api/users", root, service.UserInput{Email: "new@example.com", Password: testPassword})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/users", root, service.UserInput{Email: "bad", Password: testPassword})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	me, err := store.GetUserByEmail(context.Background(), s.db, "root@example.com")
	require.NoError(t, err)
	resp = s.do(t, http.MethodDelete, "/api/users/"+me.ID, root, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/users/"+created.ID, root, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/users", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []model.User
	decode(t, resp, &users)
	assert.Len(t, users, 1)
}

func TestInventoryListETag(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	s.createItem(t, token, "Cement", 40)

	resp := s.do(t, http.MethodGet, "/api/inventory", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tag := resp.Header.Get("ETag")
	require.NotEmpty(t, tag)
	var items []model.InventoryItem
	decode(t, resp, &items)
	assert.Len(t, items, 1)

	resp = s.do(t, http.MethodGet, "/api/inventory", token, nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	s.createItem(t, token, "Sand", 5)
	resp = s.do(t, http.MethodGet, "/api/inventory", token, nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, tag, resp.Header.Get("ETag"))
}

func TestInventoryFilters(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	s.createItem(t, token, "Cement", 40)
	s.createItem(t, token, "Sand", 5)

	resp := s.do(t, http.MethodGet, "/api/inventory?status=Low+Stock", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []model.InventoryItem
	decode(t, resp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Sand", items[0].Name)
}

func TestBorrowErrorsMapToStatus(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	item := s.createItem(t, token, "Drill", 2)

	body := map[string]any{
		"item_id":       item.ID,
		"quantity":      5,
		"borrower_name": "Bor",
		"return_date":   time.Now().Add(48 * time.Hour),
		"signature":     signature(t),
	}
	resp := s.do(t, http.MethodPost, "/api/borrowed", token, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body["quantity"] = 1
	delete(body, "borrower_name")
	resp = s.do(t, http.MethodPost, "/api/borrowed", token, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var ferr fieldError
	decode(t, resp, &ferr)
	assert.Equal(t, "borrower_name", ferr.Field)

	body["item_id"] = "missing"
	body["borrower_name"] = "Bor"
	resp = s.do(t, http.MethodPost, "/api/borrowed", token, body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBorrowLifecycle(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	item := s.createItem(t, token, "Drill", 10)

	resp := s.do(t, http.MethodPost, "/api/borrowed", token, map[string]any{
		"item_id":       item.ID,
		"quantity":      3,
		"borrower_name": "Bor",
		"return_date":   time.Now().Add(48 * time.Hour),
		"signature":     signature(t),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var record model.BorrowedItem
	decode(t, resp, &record)
	assert.Equal(t, model.BorrowActive, record.Status)

	resp = s.do(t, http.MethodGet, "/api/inventory/"+item.ID, token, nil)
	var got model.InventoryItem
	decode(t, resp, &got)
	assert.Equal(t, 7, got.Quantity)

	resp = s.do(t, http.MethodPost, "/api/borrowed/"+record.ID+"/extend", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/borrowed/"+record.ID+"/return", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &record)
	assert.Equal(t, model.BorrowReturned, record.Status)

	resp = s.do(t, http.MethodPost, "/api/borrowed/"+record.ID+"/extend", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/inventory/"+item.ID, token, nil)
	decode(t, resp, &got)
	assert.Equal(t, 10, got.Quantity)
}

func TestUsedGivenAPIFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	item := s.createItem(t, token, "Rebar", 4)

	resp := s.do(t, http.MethodPost, "/api/used-given", token, service.UsageInput{ItemID: item.ID, Type: model.UsageGiven, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "given needs a recipient")

	resp = s.do(t, http.MethodPost, "/api/used-given", token, service.UsageInput{
		ItemID: item.ID, Type: model.UsageGiven, Quantity: 4, RecipientName: "School",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var record model.UsedGivenItem
	decode(t, resp, &record)

	resp = s.do(t, http.MethodGet, "/api/used-given?type=given", token, nil)
	var records []model.UsedGivenItem
	decode(t, resp, &records)
	assert.Len(t, records, 1)

	resp = s.do(t, http.MethodDelete, "/api/used-given/"+record.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/inventory/"+item.ID, token, nil)
	var got model.InventoryItem
	decode(t, resp, &got)
	assert.Equal(t, 4, got.Quantity)
}

func TestImageUploadIsServedPublicly(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)
	item := s.createItem(t, token, "Bucket", 1)

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var png16 bytes.Buffer
	require.NoError(t, png.Encode(&png16, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "bucket.png")
	require.NoError(t, err)
	_, err = part.Write(png16.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, s.url+"/api/inventory/"+item.ID+"/image", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated model.InventoryItem
	decode(t, resp, &updated)
	require.True(t, strings.HasPrefix(updated.ImageURL, storage.URLPrefix))

	resp = s.do(t, http.MethodGet, updated.ImageURL, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
}

func TestReportsAndDashboard(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleViewer)

	for _, path := range []string{"/api/reports/inventory.pdf", "/api/reports/borrowed.pdf", "/api/reports/defected.pdf"} {
		resp := s.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")), path)
	}

	resp := s.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary map[string]any
	decode(t, resp, &summary)
	assert.Contains(t, summary, "total_quantity")

	resp = s.do(t, http.MethodGet, "/api/activity?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChangesFeed(t *testing.T) {
	s := setupTestServer(t)
	token := s.user(t, "ana@example.com", model.RoleAdmin)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/changes?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.createItem(t, token, "Cement", 3)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev realtime.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, realtime.TableInventory, ev.Table)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.url, "http")+"/api/changes", nil)
	assert.Error(t, err, "no token")
}
