package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/scrape"
	"github.com/qishuigrab/api/internal/storage"
)

// LyricsService scrapes lyric text off a track's detail page and serves it
// as a plain-text attachment through a scoped scratch file.
type LyricsService struct {
	fetcher client.PageFetcher
	baseURL string
	store   *storage.Store
}

// NewLyricsService creates a new lyrics service.
func NewLyricsService(fetcher client.PageFetcher, baseURL string, store *storage.Store) *LyricsService {
	return &LyricsService{
		fetcher: fetcher,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		store:   store,
	}
}

// Fetch scrapes title, artist and lyric lines for one track.
func (s *LyricsService) Fetch(ctx context.Context, trackID string) (*model.Lyrics, error) {
	url := s.baseURL + "/qishui/share/track?track_id=" + trackID
	html, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &model.Lyrics{
		Title:  scrape.ClassText(html, "title"),
		Artist: scrape.ClassText(html, "artist-name-max"),
		Lines:  scrape.ClassTexts(html, "ssr-lyric"),
	}, nil
}

// ComposeFile returns the sanitized attachment name and the text body for a
// lyrics download. Tracks without lyric lines get the instrumental
// placeholder, named exactly like any other lyrics file.
func ComposeFile(l *model.Lyrics) (fileName string, body []byte) {
	text := model.InstrumentalPlaceholder
	if len(l.Lines) > 0 {
		text = strings.Join(l.Lines, "\n")
	}
	name := storage.SanitizeFileName(l.Title + "-" + l.Artist + ".txt")
	return name, []byte(text)
}

// ServeScoped writes the composed lyrics file to scratch storage, hands the
// path and display name to fn, and deletes the file on every exit path.
func (s *LyricsService) ServeScoped(l *model.Lyrics, fn func(path, fileName string) error) error {
	fileName, body := ComposeFile(l)
	return s.store.WithScratchFile(".txt", body, func(path string) error {
		return fn(path, fileName)
	})
}
