package emote

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiscordEmotes/website/internal/middleware"
)

func authedRequest(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *http.Request {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	ctx := context.WithValue(req.Context(), middleware.SessionIDKey, "sess")
	ctx = context.WithValue(ctx, middleware.UserIDKey, "111222333444555666")
	return req.WithContext(ctx)
}

func decodeValidationError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func multipartUpload(t *testing.T, name string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", name))
	part, err := mw.CreateFormFile("emote", "emote.png")
	require.NoError(t, err)
	_, err = part.Write(encodePNG(t, solidNRGBA(8, 8, color.NRGBA{R: 255, A: 255})))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestRouter(svc *Service) chi.Router {
	r := chi.NewRouter()
	r.Mount("/emotes", NewHandler(svc).Routes())
	return r
}

func TestUploadHandlerValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeFileStore{}, "123456789012345678")
	router := newTestRouter(svc)

	t.Run("bad name is a field error", func(t *testing.T) {
		body, ct := multipartUpload(t, "__nope")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/emotes/guilds/123456789012345678", body, ct))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeValidationError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp["code"])
		details := resp["details"].(map[string]any)
		assert.Contains(t, details, "name")
	})

	t.Run("non-snowflake guild id is a field error", func(t *testing.T) {
		body, ct := multipartUpload(t, "pogchamp")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/emotes/guilds/not-a-guild", body, ct))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeValidationError(t, rec)
		details := resp["details"].(map[string]any)
		assert.Contains(t, details, "guildid")
	})

	t.Run("valid upload goes through", func(t *testing.T) {
		body, ct := multipartUpload(t, "pogchamp")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/emotes/guilds/123456789012345678", body, ct))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestUpdateEmoteHandlerValidation(t *testing.T) {
	store := newFakeStore()
	e := store.seed("123456789012345678", "pog", strings.Repeat("a", 56)+".png", false, false)
	svc := newTestService(store, &fakeFileStore{}, "123456789012345678")
	router := newTestRouter(svc)

	t.Run("missing shared flag rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := bytes.NewBufferString(`{}`)
		router.ServeHTTP(rec, authedRequest(t, http.MethodPatch, "/emotes/"+e.ID.String(), body, "application/json"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeValidationError(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp["code"])
	})

	t.Run("explicit false accepted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"shared": false}`)
		router.ServeHTTP(rec, authedRequest(t, http.MethodPatch, "/emotes/"+e.ID.String(), body, "application/json"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLinkHandlerValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeFileStore{}, "123456789012345678")
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"emoteId": "not-a-uuid"}`)
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/emotes/guilds/123456789012345678/links", body, "application/json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeValidationError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp["code"])
	details := resp["details"].(map[string]any)
	assert.Contains(t, details, "emoteid")
}
