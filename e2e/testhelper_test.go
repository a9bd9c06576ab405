package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/qishuigrab/api/internal/handler"
	"github.com/qishuigrab/api/internal/service"
	"github.com/qishuigrab/api/internal/storage"
	ws "github.com/qishuigrab/api/internal/websocket"
)

const providerBase = "https://music.example.com"

// fakeProvider stands in for the music-sharing site: pages served by URL,
// media bytes synthesized per URL.
type fakeProvider struct {
	pages     map[string]string
	failMedia map[string]bool
}

func (p *fakeProvider) FetchPage(_ context.Context, url string) (string, error) {
	if html, ok := p.pages[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("page fetch failed: status 404")
}

func (p *fakeProvider) DownloadToFile(_ context.Context, url, path string) error {
	if p.failMedia[url] {
		return fmt.Errorf("media request failed: status 403")
	}
	return os.WriteFile(path, []byte("media:"+url), 0o644)
}

func (p *fakeProvider) OpenStream(_ context.Context, url string) (io.ReadCloser, int64, error) {
	if p.failMedia[url] {
		return nil, 0, fmt.Errorf("media request failed: status 403")
	}
	body := "media:" + url
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

// fakeTranscoder copies input bytes into the output file so every pipeline
// sees a non-empty result.
type fakeTranscoder struct{}

func (fakeTranscoder) ExtractAudio(_ context.Context, inputPath, outputPath string) (<-chan int, error) {
	ch := make(chan int, 2)
	ch <- 50
	ch <- 100
	close(ch)
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, append([]byte("audio-of:"), data...), 0o644); err != nil {
		return nil, err
	}
	return ch, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	provider *fakeProvider
	store    *storage.Store
}

// setupApp creates a Fiber app wired identically to main.go but with a fake
// provider and transcoder, no redis and no asynq.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create temp store: %v", err)
	}

	provider := &fakeProvider{pages: map[string]string{}, failMedia: map[string]bool{}}
	transcoder := fakeTranscoder{}
	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	janitor := service.NewJanitor(nil, store, time.Hour)
	playlistService := service.NewPlaylistService(provider, providerBase)
	packageService := service.NewPackageService(provider, transcoder, store)
	extractService := service.NewExtractService(provider, transcoder, store, janitor)
	lyricsService := service.NewLyricsService(provider, providerBase, store)

	playlistHandler := handler.NewPlaylistHandler(playlistService, hub)
	packageHandler := handler.NewPackageHandler(packageService, hub, validate)
	downloadHandler := handler.NewDownloadHandler(provider)
	extractHandler := handler.NewExtractHandler(extractService, hub)
	lyricsHandler := handler.NewLyricsHandler(lyricsService)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    false,
				"ffmpeg":   true,
				"provider": true,
			},
		})
	})

	app.Static(storage.PublicMount, store.Dir())

	api := app.Group("/api")
	api.Get("/playlist", playlistHandler.Playlist)
	api.Post("/packageSelected", packageHandler.PackageSelected)
	api.Get("/downloadFile", downloadHandler.DownloadFile)
	api.Get("/extractAudio", extractHandler.ExtractAudio)
	api.Get("/lyrics", lyricsHandler.Lyrics)

	return &testApp{app: app, provider: provider, store: store}
}

// sharePage returns share-page HTML whose meta redirect points at contentPath.
func sharePage(contentPath, cover string) string {
	return `<html><head><meta name="url" content="` + contentPath + `">` +
		`<meta property="og:image" content="` + cover + `"></head></html>`
}

// routerPage wraps a payload the way the provider's server rendering does.
func routerPage(payload string) string {
	return `<html><body><script>window._ROUTER_DATA = ` + payload + `;</script></body></html>`
}

// loadPlaylistFixture registers a share link resolving to n audio tracks,
// each with a working detail page.
func (ta *testApp) loadPlaylistFixture(n int) string {
	shareURL := "https://share.example.com/p"
	ta.provider.pages[shareURL] = sharePage("/qishui/share/playlist?id=7", "https://img.example.com/cover.jpg")

	var entries []string
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("t%d", i)
		entries = append(entries, fmt.Sprintf(
			`{"type":"track","entity":{"track":{"id":%q,"name":"Song %s","duration":213000,`+
				`"artists":[{"name":"artist"}],"album":{"name":"album","url_cover":{"urls":["https://img/c.jpg"]}}}}}`,
			id, id))
		ta.provider.pages[providerBase+"/qishui/share/track?track_id="+id] = routerPage(
			`{"loaderData":{"track_page":{"audioWithLyricsOption":{"url":"https://cdn.example.com/` + id + `.mp3"}}}}`)
	}

	ta.provider.pages[providerBase+"/qishui/share/playlist?id=7"] = routerPage(fmt.Sprintf(
		`{"loaderData":{"playlist_page":{"playlistInfo":{"title":"mix","count_tracks":%d,`+
			`"owner":{"nickname":"dj"},"create_time":1700000000,"update_time":1710000000},`+
			`"medias":[%s]}}}`, n, strings.Join(entries, ",")))

	return shareURL
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertErrorCode checks the error envelope's code field.
func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %s, got %v", code, errObj["code"])
	}
}
