package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/q-controller/imagedrop/src/pkg/events"
	"github.com/q-controller/imagedrop/src/pkg/images/storage"
	"github.com/q-controller/imagedrop/src/pkg/metrics"
	"github.com/q-controller/imagedrop/src/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var uuidName = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.png$`)

type fixture struct {
	server    *httptest.Server
	store     *storage.LocalFilesystemBackend
	publisher *events.Publisher
	config    *settings.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	config := settings.Default()
	config.Storage.UploadDir = filepath.Join(root, "uploads")
	config.Storage.StaticDir = filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(filepath.Join(config.Storage.StaticDir, "js"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(config.Storage.StaticDir, "js", "app.js"), []byte("// app"), 0644))

	store, err := storage.NewLocalFilesystemBackend(config.Storage.UploadDir)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	publisher := events.NewPublisher()
	t.Cleanup(publisher.Close)

	handler, err := New(Options{
		Config:    config,
		Store:     store,
		Metrics:   metrics.New(registry),
		Gatherer:  registry,
		Publisher: publisher,
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &fixture{server: server, store: store, publisher: publisher, config: config}
}

func (f *fixture) upload(t *testing.T, payload string) map[string]string {
	t.Helper()
	body, err := json.Marshal(map[string]string{"image_data": payload})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+"/upload", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func fetch(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestUploadEndToEnd(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, "data:image/png;base64,iVBORw0KGgo=")
	filename := resp["filename"]
	require.Regexp(t, uuidName, filename)
	assert.Equal(t, f.server.URL+"/uploads/"+filename, resp["url"])
	assert.FileExists(t, filepath.Join(f.store.Root(), filename))

	status, body := fetch(t, resp["url"])
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, body)
}

func TestUploadRoundTripArbitraryBytes(t *testing.T) {
	f := newFixture(t)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	resp := f.upload(t, "data:application/octet-stream;base64,"+base64.StdEncoding.EncodeToString(payload))

	status, body := fetch(t, resp["url"])
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, payload, body)
}

func TestUploadFailureKeepsStatusOK(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, "no separator here")
	assert.Equal(t, "failed", resp["status"])
	assert.NotEmpty(t, resp["error"])
	assert.NotContains(t, resp, "url")

	blobs, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestStaticRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := fetch(t, f.server.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "imagedrop")

	status, body = fetch(t, f.server.URL+"/static/js/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "// app", string(body))

	status, _ = fetch(t, f.server.URL+"/uploads/missing.png")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = fetch(t, f.server.URL+"/uploads/.incoming/")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = fetch(t, f.server.URL+"/uploads/")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListImages(t *testing.T) {
	f := newFixture(t)
	uploaded := f.upload(t, "data:image/png;base64,iVBORw0KGgo=")

	status, body := fetch(t, f.server.URL+"/v1/images?limit=10")
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Images []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Images, 1)
	assert.Equal(t, uploaded["filename"], resp.Images[0].Filename)
	assert.Equal(t, uploaded["url"], resp.Images[0].URL)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://127.0.0.1:5500")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:5500", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "POST", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", resp.Header.Get("Access-Control-Allow-Headers"))

	req, err = http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "data:image/png;base64,iVBORw0KGgo=")

	status, body := fetch(t, f.server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	status, body = fetch(t, f.server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `imagedrop_uploads_total{status="success"} 1`)

	status, body = fetch(t, f.server.URL+"/openapi.yaml")
	assert.Equal(t, http.StatusOK, status)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(body, &doc))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/upload")
	assert.Contains(t, paths, "/v1/images")
	assert.Contains(t, paths, "/healthz")

	status, _ = fetch(t, f.server.URL+"/docs/index.html")
	assert.Equal(t, http.StatusOK, status)
}

func TestEventsRoute(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.publisher.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.publisher.Publish(events.Event{Type: events.EventCreated, Filename: "a.png", Timestamp: 1}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var received events.Event
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, "a.png", received.Filename)
}

func TestGenerateOpenAPISpecsTags(t *testing.T) {
	spec, err := GenerateOpenAPISpecs()
	require.NoError(t, err)

	var doc struct {
		Tags []string `yaml:"tags"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(spec), &doc))
	assert.ElementsMatch(t, []string{"SystemService", Tag}, doc.Tags)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{Config: settings.Default()})
	assert.Error(t, err)
}
