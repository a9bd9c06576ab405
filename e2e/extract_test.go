package e2e

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestExtractAudio_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet,
		"/api/extractAudio?url="+url.QueryEscape("https://cdn/v1.mp4")+"&title="+url.QueryEscape("现场版"), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	downloadURL, ok := result["downloadUrl"].(string)
	if !ok {
		t.Fatal("expected 'downloadUrl' in response")
	}
	if !strings.HasPrefix(downloadURL, "/files/") || !strings.HasSuffix(downloadURL, ".mp3") {
		t.Errorf("downloadUrl = %q", downloadURL)
	}
	if result["displayFileName"] != "现场版.mp3" {
		t.Errorf("displayFileName = %v", result["displayFileName"])
	}

	// The extracted audio is retrievable within the grace window.
	fileResp, err := doRequest(ta.app, http.MethodGet, downloadURL, "")
	if err != nil {
		t.Fatalf("audio fetch failed: %v", err)
	}
	assertStatus(t, fileResp, http.StatusOK)
	if body := readBody(t, fileResp); !strings.HasPrefix(body, "audio-of:") {
		t.Errorf("audio body = %q", body)
	}
}

func TestExtractAudio_MissingParams(t *testing.T) {
	ta := setupApp(t)

	for _, path := range []string{
		"/api/extractAudio",
		"/api/extractAudio?url=" + url.QueryEscape("https://cdn/v1.mp4"),
		"/api/extractAudio?title=x",
	} {
		resp, err := doRequest(ta.app, http.MethodGet, path, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, resp), "INVALID_INPUT")
	}
}

func TestExtractAudio_DownloadFailure(t *testing.T) {
	ta := setupApp(t)
	ta.provider.failMedia["https://cdn/gone.mp4"] = true

	resp, err := doRequest(ta.app, http.MethodGet,
		"/api/extractAudio?url="+url.QueryEscape("https://cdn/gone.mp4")+"&title=x", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusInternalServerError)
	assertErrorCode(t, parseJSON(t, resp), "EXTRACTION_FAILED")
}
