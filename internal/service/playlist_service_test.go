package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/qishuigrab/api/internal/model"
)

const testBaseURL = "https://music.example.com"

// fakeFetcher serves captured pages keyed by URL. A URL with no page behaves
// like an unreachable upstream.
type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (string, error) {
	if html, ok := f.pages[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("page fetch failed: status 404")
}

type recordingSink struct {
	percents []int
}

func (r *recordingSink) Publish(_ model.Operation, percent int) {
	r.percents = append(r.percents, percent)
}

func shareHTML(metaURL, cover string) string {
	return `<html><head><meta name="url" content="` + metaURL + `">` +
		`<meta property="og:image" content="` + cover + `"></head></html>`
}

func routerHTML(payload string) string {
	return `<html><body><script>window._ROUTER_DATA = ` + payload + `;</script></body></html>`
}

func trackEntry(id, name string, durationMs int) string {
	return fmt.Sprintf(`{"type":"track","entity":{"track":{"id":%q,"name":%q,"duration":%d,`+
		`"artists":[{"name":"歌手A"},{"name":"歌手B"}],`+
		`"album":{"name":"专辑","url_cover":{"urls":["https://img.example.com/c.jpg"]}}}}}`,
		id, name, durationMs)
}

func videoEntry(id, description string) string {
	return fmt.Sprintf(`{"type":"video","entity":{"video":{"video_id":%q,"description":%q,"duration":30000}}}`,
		id, description)
}

func playlistPayload(countTracks int, entries ...string) string {
	return fmt.Sprintf(`{"loaderData":{"playlist_page":{"playlistInfo":`+
		`{"title":"晚风集","count_tracks":%d,"owner":{"nickname":"dj"},`+
		`"create_time":1700000000,"update_time":1710000000},`+
		`"medias":[%s]}}}`, countTracks, strings.Join(entries, ","))
}

func trackDetailPayload(cdnURL string) string {
	return `{"loaderData":{"track_page":{"audioWithLyricsOption":{"url":"` + cdnURL + `"}}}}`
}

// newPlaylistFixture wires a share page, its content page carrying n tracks,
// and a detail page per track.
func newPlaylistFixture(n int) *fakeFetcher {
	pages := map[string]string{
		"https://share.example.com/p": shareHTML("/qishui/share/playlist?id=7", "https://img.example.com/cover.jpg"),
	}

	entries := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("t%d", i)
		entries = append(entries, trackEntry(id, "Song "+id, 213000))
		pages[testBaseURL+"/qishui/share/track?track_id="+id] =
			routerHTML(trackDetailPayload("https://cdn.example.com/" + id + ".mp3"))
	}
	pages[testBaseURL+"/qishui/share/playlist?id=7"] = routerHTML(playlistPayload(n, entries...))

	return &fakeFetcher{pages: pages}
}

func TestResolve_PlaylistFirstPage(t *testing.T) {
	svc := NewPlaylistService(newPlaylistFixture(5), testBaseURL)

	resp, err := svc.Resolve(context.Background(), "听听这个 https://share.example.com/p 吧", 1, 2, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resp.PlaylistInfo.Title != "晚风集" {
		t.Errorf("title = %q", resp.PlaylistInfo.Title)
	}
	if resp.PlaylistInfo.TrackCount != 5 || resp.PlaylistInfo.ActualCount != 5 {
		t.Errorf("counts = %d/%d", resp.PlaylistInfo.TrackCount, resp.PlaylistInfo.ActualCount)
	}
	if resp.PlaylistInfo.CoverURL != "https://img.example.com/cover.jpg" {
		t.Errorf("cover = %q", resp.PlaylistInfo.CoverURL)
	}

	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(resp.Items))
	}
	first := resp.Items[0]
	if first.ID != "t1" || first.Name != "Song t1" {
		t.Errorf("first item = %+v", first)
	}
	if first.Artists != "歌手A, 歌手B" {
		t.Errorf("artists = %q", first.Artists)
	}
	if first.Duration != 213 {
		t.Errorf("duration = %d, want seconds", first.Duration)
	}
	if first.AlbumName != "专辑" || first.CoverURL != "https://img.example.com/c.jpg" {
		t.Errorf("album fields = %q %q", first.AlbumName, first.CoverURL)
	}
	if first.DownloadURL == nil || *first.DownloadURL != "https://cdn.example.com/t1.mp3" {
		t.Errorf("download url = %v", first.DownloadURL)
	}

	p := resp.Pagination
	if p.CurrentPage != 1 || p.PageSize != 2 || p.TotalItems != 5 || p.TotalPages != 3 {
		t.Errorf("pagination = %+v", p)
	}
	if !p.HasNext || p.HasPrev {
		t.Errorf("hasNext/hasPrev = %v/%v", p.HasNext, p.HasPrev)
	}
}

func TestResolve_LastAndBeyondLastPage(t *testing.T) {
	svc := NewPlaylistService(newPlaylistFixture(5), testBaseURL)

	resp, err := svc.Resolve(context.Background(), "https://share.example.com/p", 3, 2, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Errorf("expected 1 item on last page, got %d", len(resp.Items))
	}
	if resp.Pagination.HasNext || !resp.Pagination.HasPrev {
		t.Errorf("pagination flags = %+v", resp.Pagination)
	}

	resp, err = svc.Resolve(context.Background(), "https://share.example.com/p", 9, 2, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("expected empty page beyond the end, got %d items", len(resp.Items))
	}
	if resp.Pagination.TotalItems != 5 {
		t.Errorf("totalItems = %d", resp.Pagination.TotalItems)
	}
}

func TestResolve_DefaultsPageAndSize(t *testing.T) {
	svc := NewPlaylistService(newPlaylistFixture(3), testBaseURL)

	resp, err := svc.Resolve(context.Background(), "https://share.example.com/p", 0, 0, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.Pagination.CurrentPage != 1 || resp.Pagination.PageSize != 10 {
		t.Errorf("defaults not applied: %+v", resp.Pagination)
	}
	if len(resp.Items) != 3 {
		t.Errorf("expected all 3 items, got %d", len(resp.Items))
	}
}

func TestResolve_FailedItemKeepsPlace(t *testing.T) {
	fetcher := newPlaylistFixture(3)
	// Make t2's detail page unreachable.
	delete(fetcher.pages, testBaseURL+"/qishui/share/track?track_id=t2")

	svc := NewPlaylistService(fetcher, testBaseURL)
	sink := &recordingSink{}
	resp, err := svc.Resolve(context.Background(), "https://share.example.com/p", 1, 10, sink)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(resp.Items) != 3 {
		t.Fatalf("failed item dropped: got %d items", len(resp.Items))
	}
	if resp.Items[0].DownloadURL == nil || resp.Items[2].DownloadURL == nil {
		t.Error("healthy items lost their urls")
	}
	if resp.Items[1].DownloadURL != nil {
		t.Errorf("failed item should carry nil url, got %q", *resp.Items[1].DownloadURL)
	}

	// Progress still reaches 100 despite the failure.
	if len(sink.percents) == 0 || sink.percents[len(sink.percents)-1] != 100 {
		t.Errorf("progress emissions = %v", sink.percents)
	}
}

func TestResolve_VideoItem(t *testing.T) {
	pages := map[string]string{
		"https://share.example.com/p":                   shareHTML("/qishui/share/playlist?id=7", ""),
		testBaseURL + "/qishui/share/playlist?id=7":     routerHTML(playlistPayload(1, videoEntry("v1", "现场片段"))),
		testBaseURL + "/qishui/share/ugc_video?&ugc_video_id=v1": routerHTML(`{"loaderData":{"ugc_video_page":{"videoOptions":{"url":"https://cdn.example.com/v1.mp4"}}}}`),
	}

	svc := NewPlaylistService(&fakeFetcher{pages: pages}, testBaseURL)
	resp, err := svc.Resolve(context.Background(), "https://share.example.com/p", 1, 10, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	item := resp.Items[0]
	if item.Kind != model.MediaKindVideo || item.Name != "现场片段" {
		t.Errorf("item = %+v", item)
	}
	if item.DownloadURL == nil || *item.DownloadURL != "https://cdn.example.com/v1.mp4" {
		t.Errorf("download url = %v", item.DownloadURL)
	}
}

func TestResolve_SingleTrackPayload(t *testing.T) {
	payload := `{"loaderData":{"track_page":{` +
		`"track_id":"t9",` +
		`"metaData":{"title":"单独的歌","artist":"某人","duration":180000,"album":"专辑","cover":"https://img.example.com/x.jpg"},` +
		`"audioWithLyricsOption":{"url":"https://cdn.example.com/t9.mp3"}}}}`

	pages := map[string]string{
		"https://share.example.com/t":                    shareHTML("/qishui/share/track?track_id=t9", ""),
		testBaseURL + "/qishui/share/track?track_id=t9":  routerHTML(payload),
	}

	svc := NewPlaylistService(&fakeFetcher{pages: pages}, testBaseURL)
	resp, err := svc.Resolve(context.Background(), "https://share.example.com/t", 1, 10, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resp.PlaylistInfo.Title != "单独的歌" || resp.PlaylistInfo.OwnerName != "某人" {
		t.Errorf("info = %+v", resp.PlaylistInfo)
	}
	if resp.PlaylistInfo.TrackCount != 1 || resp.PlaylistInfo.ActualCount != 1 {
		t.Errorf("counts = %+v", resp.PlaylistInfo)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	item := resp.Items[0]
	if item.ID != "t9" || item.Duration != 180 {
		t.Errorf("item = %+v", item)
	}
	if item.DownloadURL == nil || *item.DownloadURL != "https://cdn.example.com/t9.mp3" {
		t.Errorf("download url = %v", item.DownloadURL)
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	svc := NewPlaylistService(&fakeFetcher{}, testBaseURL)

	_, err := svc.Resolve(context.Background(), "no link here", 1, 10, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolve_UpstreamUnavailable(t *testing.T) {
	svc := NewPlaylistService(&fakeFetcher{}, testBaseURL)

	_, err := svc.Resolve(context.Background(), "https://share.example.com/p", 1, 10, nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestResolve_ParseFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentHTML string
	}{
		{"no meta url", ""},
		{"no router data", `<html><body>nothing rendered</body></html>`},
		{"unknown payload shape", routerHTML(`{"loaderData":{"other_page":{}}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := map[string]string{}
			if tt.contentHTML == "" {
				pages["https://share.example.com/p"] = `<html><head></head></html>`
			} else {
				pages["https://share.example.com/p"] = shareHTML("/qishui/share/playlist?id=7", "")
				pages[testBaseURL+"/qishui/share/playlist?id=7"] = tt.contentHTML
			}

			svc := NewPlaylistService(&fakeFetcher{pages: pages}, testBaseURL)
			sink := &recordingSink{}
			_, err := svc.Resolve(context.Background(), "https://share.example.com/p", 1, 10, sink)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
			if len(sink.percents) != 0 {
				t.Errorf("progress emitted before failure: %v", sink.percents)
			}
		})
	}
}

func TestResolveTrackURL_DecodesEscapes(t *testing.T) {
	raw := `https:\\u002F\\u002Fcdn.example.com\\u002Fsig%3Dabc%7Cdef`
	pages := map[string]string{
		testBaseURL + "/qishui/share/track?track_id=t1": routerHTML(trackDetailPayload(raw)),
	}

	svc := NewPlaylistService(&fakeFetcher{pages: pages}, testBaseURL)
	got, err := svc.ResolveTrackURL(context.Background(), "t1", model.MediaKindAudio)
	if err != nil {
		t.Fatalf("ResolveTrackURL failed: %v", err)
	}

	want := "https://cdn.example.com/sig=abc|def"
	if got != want {
		t.Errorf("decoded url = %q, want %q", got, want)
	}
}

func TestResolveTrackURL_MissingURL(t *testing.T) {
	pages := map[string]string{
		testBaseURL + "/qishui/share/track?track_id=t1": routerHTML(`{"loaderData":{"track_page":{}}}`),
	}

	svc := NewPlaylistService(&fakeFetcher{pages: pages}, testBaseURL)
	if _, err := svc.ResolveTrackURL(context.Background(), "t1", model.MediaKindAudio); err == nil {
		t.Fatal("expected error for payload without url")
	}
}
