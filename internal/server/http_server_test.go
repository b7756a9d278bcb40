package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Syn1ak/notes-api-autotest/internal/database"
	"github.com/Syn1ak/notes-api-autotest/internal/models"
	"github.com/Syn1ak/notes-api-autotest/internal/server"
	"github.com/Syn1ak/notes-api-autotest/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mockStore records calls and returns canned values
type mockStore struct {
	calls int
	note  models.NoteDTO
	list  models.NoteList
	err   error
	panic bool
}

func (m *mockStore) called() error {
	m.calls++
	if m.panic {
		panic("store exploded")
	}
	return m.err
}

func (m *mockStore) ListAll(ctx context.Context) (models.NoteList, error) {
	if err := m.called(); err != nil {
		return models.NoteList{}, err
	}
	return m.list, nil
}

func (m *mockStore) Create(ctx context.Context, req models.CreateNoteRequest) (models.NoteDTO, error) {
	if err := m.called(); err != nil {
		return models.NoteDTO{}, err
	}
	return m.note, nil
}

func (m *mockStore) GetByID(ctx context.Context, id string) (models.NoteDTO, error) {
	if err := m.called(); err != nil {
		return models.NoteDTO{}, err
	}
	return m.note, nil
}

func (m *mockStore) Update(ctx context.Context, id string, req models.UpdateNoteRequest) (models.NoteDTO, error) {
	if err := m.called(); err != nil {
		return models.NoteDTO{}, err
	}
	return m.note, nil
}

func (m *mockStore) Remove(ctx context.Context, id string) (models.DeleteResult, error) {
	if err := m.called(); err != nil {
		return models.DeleteResult{}, err
	}
	return models.DeleteResult{Success: true}, nil
}

func newTestRouter(s store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := server.NewNoteHandler(s, hclog.NewNullLogger())
	return server.NewRouter(server.RouterOptions{CORSEnabled: true}, h, hclog.NewNullLogger())
}

func newMemoryRouter() *gin.Engine {
	return newTestRouter(store.NewNoteStore(database.NewMemory(), nil))
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNotesLifecycle(t *testing.T) {
	r := newMemoryRouter()

	w := do(t, r, http.MethodPost, "/notes", `{"title":"Groceries","content":"milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.NoteDTO](t, w)
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	require.Equal(t, "Groceries", created.Title)
	require.Equal(t, "milk", created.Content)

	w = do(t, r, http.MethodGet, "/notes", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.NoteList](t, w)
	require.Equal(t, []models.NoteDTO{created}, list.Items)

	w = do(t, r, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, created, decode[models.NoteDTO](t, w))

	w = do(t, r, http.MethodPut, "/notes/"+created.ID, `{"content":"eggs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.NoteDTO](t, w)
	require.Equal(t, models.NoteDTO{ID: created.ID, Title: "Groceries", Content: "eggs"}, updated)

	w = do(t, r, http.MethodDelete, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[server.ErrorResponse](t, w)
	require.Equal(t, server.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    `Note with ID "` + created.ID + `" not found`,
		Error:      "Not Found",
	}, resp)

	w = do(t, r, http.MethodDelete, "/notes/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNotes_EmptyAndSorted(t *testing.T) {
	r := newMemoryRouter()

	w := do(t, r, http.MethodGet, "/notes", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"items":[]}`, w.Body.String())

	for _, title := range []string{"b", "a", "c"} {
		w = do(t, r, http.MethodPost, "/notes", `{"title":"`+title+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = do(t, r, http.MethodGet, "/notes", "")
	list := decode[models.NoteList](t, w)
	require.Len(t, list.Items, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, list.Items[i].Title)
		assert.Equal(t, "", list.Items[i].Content)
	}
}

func TestCreateNote_RejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unknown property", `{"title":"a","extra":1}`, "property extra should not exist"},
		{"capitalised title", `{"Title":"x"}`, "property Title should not exist"},
		{"upper case keys", `{"TITLE":"x","CONTENT":"y"}`, "property CONTENT should not exist"},
		{"capitalised content", `{"title":"x","Content":"y"}`, "property Content should not exist"},
		{"title wrong type", `{"title":5}`, "title must be a string"},
		{"content wrong type", `{"title":"a","content":7}`, "content must be a string"},
		{"missing title", `{}`, "title should not be empty"},
		{"empty title", `{"title":""}`, "title should not be empty"},
		{"title too long", `{"title":"` + strings.Repeat("x", 256) + `"}`, "title must be shorter than or equal to 255 characters"},
		{"no body", "", "request body must be a JSON object"},
		{"null body", "null", "request body must be a JSON object"},
		{"array body", "[]", "request body must be a JSON object"},
		{"trailing data", `{"title":"a"} {}`, "request body must contain a single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockStore{}
			r := newTestRouter(m)

			w := do(t, r, http.MethodPost, "/notes", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[server.ErrorResponse](t, w)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Bad Request", resp.Error)
			assert.Equal(t, tt.message, resp.Message)
			assert.Zero(t, m.calls)
		})
	}
}

func TestCreateNote_MaxLengthTitleAccepted(t *testing.T) {
	r := newMemoryRouter()
	title := strings.Repeat("é", 255)

	w := do(t, r, http.MethodPost, "/notes", `{"title":"`+title+`"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, title, decode[models.NoteDTO](t, w).Title)
}

func TestUpdateNote_ContentHandling(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"omitted content is kept", `{"title":"renamed"}`, "milk"},
		{"empty content clears", `{"content":""}`, ""},
		{"null content clears", `{"content":null}`, ""},
		{"empty object changes nothing", `{}`, "milk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMemoryRouter()
			w := do(t, r, http.MethodPost, "/notes", `{"title":"Groceries","content":"milk"}`)
			require.Equal(t, http.StatusCreated, w.Code)
			id := decode[models.NoteDTO](t, w).ID

			w = do(t, r, http.MethodPut, "/notes/"+id, tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decode[models.NoteDTO](t, w).Content)

			w = do(t, r, http.MethodGet, "/notes/"+id, "")
			assert.Equal(t, tt.want, decode[models.NoteDTO](t, w).Content)
		})
	}
}

func TestUpdateNote_RejectsInvalidBodies(t *testing.T) {
	id := uuid.NewString()
	for _, body := range []string{
		`{"title":""}`,
		`{"title":null,"owner":"x"}`,
		`{"Title":"x"}`,
		`{"title":"x","Content":"y"}`,
		`{"content":7}`,
		`{"title":"` + strings.Repeat("x", 256) + `"}`,
		`not json`,
	} {
		m := &mockStore{}
		r := newTestRouter(m)

		w := do(t, r, http.MethodPut, "/notes/"+id, body)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Zero(t, m.calls, body)
	}
}

func TestNULInTextRejected(t *testing.T) {
	r := newMemoryRouter()

	w := do(t, r, http.MethodPost, "/notes", `{"title":"a\u0000b"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title must not contain NUL characters", decode[server.ErrorResponse](t, w).Message)

	w = do(t, r, http.MethodPost, "/notes", `{"title":"ok"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[models.NoteDTO](t, w).ID

	w = do(t, r, http.MethodPut, "/notes/"+id, `{"content":"x\u0000"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "content must not contain NUL characters", decode[server.ErrorResponse](t, w).Message)
}

func TestUpdateNote_UnknownID(t *testing.T) {
	r := newMemoryRouter()
	id := uuid.NewString()

	w := do(t, r, http.MethodPut, "/notes/"+id, `{"title":"x"}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, `Note with ID "`+id+`" not found`, decode[server.ErrorResponse](t, w).Message)
}

func TestMalformedIDNeverReachesStore(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/notes/not-a-uuid", ""},
		{http.MethodDelete, "/notes/123", ""},
		{http.MethodPut, "/notes/not-a-uuid", `{"title":"x"}`},
		// the id is checked before the body
		{http.MethodPut, "/notes/not-a-uuid", `{"bogus":true}`},
		{http.MethodGet, "/notes/" + strings.ReplaceAll(uuid.NewString(), "-", ""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			m := &mockStore{}
			r := newTestRouter(m)

			w := do(t, r, tt.method, tt.path, tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation failed (uuid is expected)", decode[server.ErrorResponse](t, w).Message)
			assert.Zero(t, m.calls)
		})
	}
}

func TestUppercaseIDFindsNote(t *testing.T) {
	r := newMemoryRouter()
	w := do(t, r, http.MethodPost, "/notes", `{"title":"Case"}`)
	id := decode[models.NoteDTO](t, w).ID

	w = do(t, r, http.MethodGet, "/notes/"+strings.ToUpper(id), "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[models.NoteDTO](t, w).ID)
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"internal", status.Error(codes.Internal, "failed to list notes"), http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
		{"canceled", status.Error(codes.Canceled, "request canceled"), http.StatusServiceUnavailable, "request canceled"},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline exceeded"), http.StatusGatewayTimeout, "deadline exceeded"},
		{"not found", status.Error(codes.NotFound, "gone"), http.StatusNotFound, "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&mockStore{err: tt.err})

			w := do(t, r, http.MethodGet, "/notes", "")

			require.Equal(t, tt.code, w.Code)
			resp := decode[server.ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, http.StatusText(tt.code), resp.Error)
		})
	}
}

func TestPanicIsRecovered(t *testing.T) {
	r := newTestRouter(&mockStore{panic: true})

	w := do(t, r, http.MethodGet, "/notes", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode[server.ErrorResponse](t, w).Message)
}

func TestUnknownRoutes(t *testing.T) {
	r := newTestRouter(&mockStore{})

	w := do(t, r, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Cannot GET /nope", decode[server.ErrorResponse](t, w).Message)

	w = do(t, r, http.MethodPatch, "/notes", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Cannot PATCH /notes", decode[server.ErrorResponse](t, w).Message)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(&mockStore{})

	w := do(t, r, http.MethodOptions, "/notes", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, r, http.MethodGet, "/notes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightEchoesRequestedHeaders(t *testing.T) {
	r := newTestRouter(&mockStore{})

	req := httptest.NewRequest(http.MethodOptions, "/notes", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-request-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "content-type, x-request-id", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, w.Header().Values("Vary"), "Access-Control-Request-Headers")
}

func TestCORSDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := server.NewNoteHandler(&mockStore{}, nil)
	r := server.NewRouter(server.RouterOptions{}, h, hclog.NewNullLogger())

	w := do(t, r, http.MethodGet, "/notes", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newMemoryRouter()
	do(t, r, http.MethodGet, "/notes", "")
	do(t, r, http.MethodGet, "/notes/bad", "")

	w := do(t, r, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `notes_operations_total{operation="list",outcome="OK"}`)
	assert.Contains(t, body, `notes_operations_total{operation="get",outcome="InvalidArgument"}`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/notes",status="200"}`)
}
