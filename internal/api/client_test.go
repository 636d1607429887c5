package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/rmehra06/galleryctl/internal/api"
	"github.com/rmehra06/galleryctl/internal/models"
)

func respond(t *testing.T, w http.ResponseWriter, status int, p api.Payload) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(p))
}

func imagesData(t *testing.T, images []models.ImageRef) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"images": images})
	require.NoError(t, err)
	return raw
}

func newClient(t *testing.T, srv *httptest.Server, token string) *api.Client {
	t.Helper()
	c, err := api.NewClient(srv.URL, token)
	require.NoError(t, err)
	return c
}

func TestFetchSetReadsParentProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/projects/proj-1", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		raw, err := json.Marshal(map[string]any{"project": map[string]any{
			"id": "proj-1",
			"images": []models.ImageRef{
				{ID: "img-1", URL: "/img/1.jpg", OrderIndex: 0, IsFeatured: true},
			},
		}})
		require.NoError(t, err)
		respond(t, w, http.StatusOK, api.Payload{Success: true, Data: raw})
	}))
	defer srv.Close()

	images, err := newClient(t, srv, "secret").FetchSet(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, "img-1", images[0].ID)
	require.True(t, images[0].IsFeatured)
}

func TestUploadSendsSingleMultipartBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/projects/proj-1/images", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(32<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		require.Equal(t, "a.jpg", files[0].Filename)
		require.Equal(t, "b.png", files[1].Filename)

		src, err := files[0].Open()
		require.NoError(t, err)
		defer src.Close()
		body, err := io.ReadAll(src)
		require.NoError(t, err)
		require.Equal(t, "jpeg-bytes", string(body))

		respond(t, w, http.StatusOK, api.Payload{Success: true, Data: imagesData(t, []models.ImageRef{
			{ID: "img-1", OrderIndex: 0, IsFeatured: true},
			{ID: "img-2", OrderIndex: 1},
		})})
	}))
	defer srv.Close()

	images, err := newClient(t, srv, "secret").UploadImages(context.Background(), "proj-1", []models.FileUpload{
		{Filename: "a.jpg", Content: strings.NewReader("jpeg-bytes")},
		{Filename: "b.png", Content: strings.NewReader("png-bytes")},
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
}

func TestDeleteEncodesIdentityInPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.EscapedPath()
		respond(t, w, http.StatusOK, api.Payload{Success: true, Message: "deleted"})
	}))
	defer srv.Close()

	c := newClient(t, srv, "secret")

	images, err := c.DeleteImage(context.Background(), "proj-1", models.ByID("img-2"))
	require.NoError(t, err)
	require.Nil(t, images, "confirmation without an echoed set decodes to nil")
	require.Equal(t, "/projects/proj-1/images/img-2", gotPath)

	// Path-keyed legacy identities must survive their slashes.
	_, err = c.DeleteImage(context.Background(), "proj-1", models.ByPath("legacy/cover.png"))
	require.NoError(t, err)
	require.Equal(t, "/projects/proj-1/images/legacy%2Fcover.png", gotPath)
}

func TestReorderSendsWireIdentities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/projects/proj-1/images/reorder", r.URL.Path)

		var body struct {
			Order []any `json:"order"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// Ids go as strings, positional keys as numbers.
		require.Equal(t, []any{"img-2", "img-1", float64(2)}, body.Order)

		respond(t, w, http.StatusOK, api.Payload{Success: true, Data: imagesData(t, []models.ImageRef{
			{ID: "img-2", OrderIndex: 0, IsFeatured: true},
			{ID: "img-1", OrderIndex: 1},
			{ID: "img-3", OrderIndex: 2},
		})})
	}))
	defer srv.Close()

	images, err := newClient(t, srv, "secret").ReorderImages(context.Background(), "proj-1", []models.Identity{
		models.ByID("img-2"), models.ByID("img-1"), models.ByIndex(2),
	})
	require.NoError(t, err)
	require.Equal(t, "img-2", images[0].ID)
}

func TestSetFeaturedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/projects/proj-1/featured-image", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"identity": "img-3"}, body)

		respond(t, w, http.StatusOK, api.Payload{Success: true, Message: "featured image updated"})
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "secret").SetFeaturedImage(context.Background(), "proj-1", models.ByID("img-3"))
	require.NoError(t, err)
}

func TestExtractReturnsMessageAndOptionalSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/projects/proj-1/extract-images", r.URL.Path)
		respond(t, w, http.StatusOK, api.Payload{
			Success: true,
			Message: "extracted 3 images",
			Data:    imagesData(t, []models.ImageRef{{ID: "img-1"}, {ID: "img-2"}, {ID: "img-3"}}),
		})
	}))
	defer srv.Close()

	msg, images, err := newClient(t, srv, "secret").ExtractImages(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, "extracted 3 images", msg)
	require.Len(t, images, 3)
}

func TestServerRejectionCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, http.StatusBadRequest, api.Payload{Success: false, Message: "image limit reached"})
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "secret").FetchSet(context.Background(), "proj-1")

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "image limit reached", apiErr.Message)
}

func TestValidationErrorListReducesToOneMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, http.StatusUnprocessableEntity, api.Payload{
			Success: false,
			Errors: []api.FieldError{
				{Field: "files", Message: "unsupported image type"},
				{Field: "files", Message: "file too large"},
			},
		})
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "secret").FetchSet(context.Background(), "proj-1")

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "files: unsupported image type", apiErr.Message)
}

func TestNonJSONErrorFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "secret").FetchSet(context.Background(), "proj-1")

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestExpiredJWTFailsBeforeAnyRequest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		respond(t, w, http.StatusOK, api.Payload{Success: true})
	}))
	defer srv.Close()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, err = newClient(t, srv, expired).FetchSet(context.Background(), "proj-1")
	require.ErrorIs(t, err, api.ErrCredentialExpired)
	require.Zero(t, hits.Load(), "an expired credential must not burn a round trip")
}

func TestOpaqueTokenIsNotPreExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer opaque-session-token", r.Header.Get("Authorization"))
		raw, err := json.Marshal(map[string]any{"project": map[string]any{"id": "proj-1"}})
		require.NoError(t, err)
		respond(t, w, http.StatusOK, api.Payload{Success: true, Data: raw})
	}))
	defer srv.Close()

	_, err := newClient(t, srv, "opaque-session-token").FetchSet(context.Background(), "proj-1")
	require.NoError(t, err)
}
