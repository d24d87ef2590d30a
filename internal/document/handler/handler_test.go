package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"github.com/publishflow/publishflow/internal/document/service"
	"github.com/publishflow/publishflow/internal/workflow"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// memoryArchive keeps snapshots in memory, both as the workflow archiver
// and as the service's snapshot store.
type memoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{objects: make(map[string][]byte)}
}

func (a *memoryArchive) Archive(_ context.Context, collection, id string, doc bson.M) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", err
	}
	key := path.Join("snapshots", collection, id, fmt.Sprintf("%03d.json", len(a.objects)))
	a.objects[key] = b
	return key, nil
}

func (a *memoryArchive) Snapshots(_ context.Context, collection, id string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prefix := path.Join("snapshots", collection, id) + "/"
	var keys []string
	for k := range a.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *memoryArchive) OpenSnapshot(_ context.Context, collection, id, name string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.objects[path.Join("snapshots", collection, id, name)]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (a *memoryArchive) GetPresignedURL(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://archive.example.com/%s?expires=%d", key, int(expires.Seconds())), nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *repository.MemoryDatabase) {
	t.Helper()
	g, live, _ := newArchivedRouter(t, false)
	return g, live
}

func newArchivedRouter(t *testing.T, archived bool) (*gin.Engine, *repository.MemoryDatabase, *memoryArchive) {
	t.Helper()
	ctx := context.Background()
	live := repository.NewMemoryDatabase()
	var (
		wfOpts  []workflow.Option
		svcOpts []service.Option
		arch    *memoryArchive
	)
	if archived {
		arch = newMemoryArchive()
		wfOpts = append(wfOpts, workflow.WithArchiver(arch))
		svcOpts = append(svcOpts, service.WithSnapshots(arch))
	}
	wf := workflow.New(workflow.Options{LiveURL: "https://live.example.com", PreviewURL: "https://preview.example.com"}, live, wfOpts...)
	reg := cms.NewRegistry(cms.MemoryStores(repository.NewMemoryDatabase()))
	reg.Use(wf)

	post := reg.NewList("Post", cms.ListOptions{Publishable: &cms.PublishableOptions{Path: "/blog/:slug"}})
	require.NoError(t, post.Add(
		cms.Field{Path: "title", Type: cms.TypeText},
		cms.Field{Path: "slug", Type: cms.TypeText},
	))
	require.NoError(t, reg.Register(ctx, post))

	setting := reg.NewList("Setting", cms.ListOptions{NoCreate: true, NoDelete: true})
	require.NoError(t, reg.Register(ctx, setting))

	g := gin.New()
	RegisterDocumentRoutes(g, service.New(reg, wf, svcOpts...))
	return g, live, arch
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestDocumentHandler_PublishFlow(t *testing.T) {
	g, live := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/lists/posts/documents", `{"title":"Hello","slug":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "unpublished", created[document.FieldStatus])
	require.Equal(t, "https://preview.example.com/blog/hello", created[document.FieldPreviewURL])
	base := "/api/lists/posts/documents/" + id

	w = do(g, http.MethodGet, base+"/live", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(g, http.MethodPost, base+"/publish", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "published", decode(t, w)[document.FieldStatus])
	require.Equal(t, 1, live.Repo("posts").Len())

	w = do(g, http.MethodPatch, base, `{"title":"Changed","publish__status":"published"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "draft", decode(t, w)[document.FieldStatus])

	w = do(g, http.MethodGet, base+"/diff", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["differs"])

	w = do(g, http.MethodPost, base+"/rollback", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello", decode(t, w)["title"])

	w = do(g, http.MethodGet, "/api/lists/posts/documents?status=published", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["documents"], 1)

	w = do(g, http.MethodPost, base+"/unpublish", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, live.Repo("posts").Len())

	w = do(g, http.MethodDelete, base, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(g, http.MethodGet, base, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Errors(t *testing.T) {
	g, _ := newTestRouter(t)

	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/lists/nope/documents", "").Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodPost, "/api/lists/posts/documents", `{"colour":"red"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodPost, "/api/lists/posts/documents", `not json`).Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/lists/posts/documents?status=archived", "").Code)
	require.Equal(t, http.StatusForbidden, do(g, http.MethodPost, "/api/lists/settings/documents", `{}`).Code)

	w := do(g, http.MethodPost, "/api/lists/posts/documents", `{"title":"x"}`)
	id, _ := decode(t, w)["_id"].(string)
	w = do(g, http.MethodPost, "/api/lists/posts/documents/"+id+"/rollback", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, workflow.ErrSaveFailed.Error(), decode(t, w)["error"])

	require.Equal(t, http.StatusNotFound, do(g, http.MethodPost, "/api/lists/posts/documents/000000000000000000000000/publish", "").Code)
}

func TestDocumentHandler_Lists(t *testing.T) {
	g, _ := newTestRouter(t)
	w := do(g, http.MethodGet, "/api/lists", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Lists []service.ListInfo `json:"lists"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Lists, 2)
	require.Equal(t, "Post", body.Lists[0].Key)
	require.True(t, body.Lists[0].Managed)
	require.True(t, body.Lists[1].NoCreate)
}

func TestDocumentHandler_Snapshots(t *testing.T) {
	g, _, _ := newArchivedRouter(t, true)

	w := do(g, http.MethodPost, "/api/lists/posts/documents", `{"title":"Hello","slug":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := decode(t, w)["_id"].(string)
	base := "/api/lists/posts/documents/" + id

	w = do(g, http.MethodGet, base+"/snapshots", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode(t, w)["snapshots"])

	require.Equal(t, http.StatusOK, do(g, http.MethodPost, base+"/publish", "").Code)
	require.Equal(t, http.StatusOK, do(g, http.MethodPatch, base, `{"title":"Second"}`).Code)
	require.Equal(t, http.StatusOK, do(g, http.MethodPost, base+"/publish", "").Code)

	w = do(g, http.MethodGet, base+"/snapshots", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Snapshots []service.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 2)
	require.Equal(t, "000.json", body.Snapshots[0].Name)
	require.Equal(t, "snapshots/posts/"+id+"/000.json", body.Snapshots[0].Key)
	require.Equal(t, "https://archive.example.com/snapshots/posts/"+id+"/000.json?expires=900", body.Snapshots[0].URL)

	w = do(g, http.MethodGet, base+"/snapshots/001.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), `"title":"Second"`)

	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, base+"/snapshots/999.json", "").Code)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/lists/posts/documents/000000000000000000000000/snapshots", "").Code)
}

func TestDocumentHandler_SnapshotsWithoutArchive(t *testing.T) {
	g, _ := newTestRouter(t)
	w := do(g, http.MethodPost, "/api/lists/posts/documents", `{"title":"x"}`)
	id, _ := decode(t, w)["_id"].(string)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/lists/posts/documents/"+id+"/snapshots", "").Code)
}
