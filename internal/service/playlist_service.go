package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/progress"
	"github.com/qishuigrab/api/internal/scrape"
)

// Typed failures mapped onto the HTTP error taxonomy by the handlers.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrParse        = errors.New("unrecognized page structure")
	ErrNoSelection  = errors.New("no tracks selected")
)

// routerDataMarker names the global the provider assigns its server-rendered
// state to inside a script element.
const routerDataMarker = "_ROUTER_DATA"

// mediaURLDecoder undoes the provider's partial escaping of resolved media
// URLs. The set is exact: general percent-decoding would corrupt the signed
// query parameters.
var mediaURLDecoder = strings.NewReplacer(`\u002F`, "/", "%7C", "|", "%3D", "=")

// PlaylistResolver resolves a pasted share link into playlist metadata and
// per-item download URLs.
type PlaylistResolver interface {
	Resolve(ctx context.Context, rawLink string, page, pageSize int, sink progress.Sink) (*model.PlaylistResponse, error)
}

// PlaylistService implements playlist resolution against the provider's
// share pages.
type PlaylistService struct {
	fetcher client.PageFetcher
	baseURL string
}

// NewPlaylistService creates a new playlist service. baseURL is the provider
// origin used to absolutize relative meta URLs and to build per-item detail
// page URLs.
func NewPlaylistService(fetcher client.PageFetcher, baseURL string) *PlaylistService {
	return &PlaylistService{
		fetcher: fetcher,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// mediaEntry is one normalized playlist entry before URL resolution.
type mediaEntry struct {
	id         string
	kind       model.MediaKind
	name       string
	artists    string
	durationMs int64
	albumName  string
	coverURL   string
}

// Resolve implements the full share-link pipeline: share page fetch, meta
// redirect, router-data extraction, normalization, pagination, then per-item
// URL resolution with progress under the fetching operation. A single item's
// resolution failure records a nil URL and never aborts the batch.
func (s *PlaylistService) Resolve(ctx context.Context, rawLink string, page, pageSize int, sink progress.Sink) (*model.PlaylistResponse, error) {
	link := scrape.FirstURL(rawLink)
	if link == "" {
		return nil, fmt.Errorf("%w: no URL found in share text", ErrInvalidInput)
	}

	shareHTML, err := s.fetcher.FetchPage(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// The share page redirects to the real content page through a meta tag;
	// its absence means the page shape is not one we know how to read.
	metaURL := scrape.MetaContent(shareHTML, "name", "url")
	if metaURL == "" {
		return nil, fmt.Errorf("%w: share page has no meta url", ErrParse)
	}
	coverURL := scrape.MetaContent(shareHTML, "property", "og:image")

	if !strings.HasPrefix(metaURL, "http") {
		metaURL = s.baseURL + metaURL
	}

	contentHTML, err := s.fetcher.FetchPage(ctx, metaURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	data, err := scrape.RouterData(contentHTML, routerDataMarker)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	info, medias, err := normalizePayload(data)
	if err != nil {
		return nil, err
	}
	info.CoverURL = coverURL
	info.ActualCount = len(medias)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	// Pagination runs over the items the page payload actually carries,
	// which can be fewer than the declared track count.
	total := len(medias)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	paged := medias[start:end]

	tracker := progress.NewTracker(sink, model.OperationFetching)
	items := make([]model.TrackItem, 0, len(paged))
	for i, m := range paged {
		item := model.TrackItem{
			ID:        m.id,
			Kind:      m.kind,
			Name:      m.name,
			Artists:   m.artists,
			Duration:  m.durationMs / 1000,
			AlbumName: m.albumName,
			CoverURL:  m.coverURL,
		}

		url, err := s.ResolveTrackURL(ctx, m.id, m.kind)
		if err != nil {
			// Recorded, not escalated; no retry within this pass.
			log.Printf("Failed to resolve download url for %s %s: %v", m.kind, m.id, err)
		} else {
			item.DownloadURL = &url
		}

		items = append(items, item)
		tracker.Update(i+1, len(paged))
	}

	return &model.PlaylistResponse{
		PlaylistInfo: *info,
		Items:        items,
		Pagination: model.Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}, nil
}

// ResolveTrackURL fetches the per-item detail page for the given kind and
// extracts the resolved binary download URL. A missing URL in the payload is
// an error for this function but non-fatal for playlist resolution.
func (s *PlaylistService) ResolveTrackURL(ctx context.Context, id string, kind model.MediaKind) (string, error) {
	var detailURL string
	if kind == model.MediaKindVideo {
		detailURL = s.baseURL + "/qishui/share/ugc_video?&ugc_video_id=" + id
	} else {
		detailURL = s.baseURL + "/qishui/share/track?track_id=" + id
	}

	html, err := s.fetcher.FetchPage(ctx, detailURL)
	if err != nil {
		return "", fmt.Errorf("detail page fetch failed: %w", err)
	}

	data, err := scrape.RouterData(html, routerDataMarker)
	if err != nil {
		return "", fmt.Errorf("detail page has no router data: %w", err)
	}

	var url string
	if kind == model.MediaKindVideo {
		url = data.Get("loaderData.ugc_video_page.videoOptions.url").String()
	} else {
		url = data.Get("loaderData.track_page.audioWithLyricsOption.url").String()
	}
	if url == "" {
		return "", fmt.Errorf("no download url in %s payload", kind)
	}

	return mediaURLDecoder.Replace(url), nil
}

// normalizePayload folds the two payload shapes the provider renders (a
// playlist page, or a single track page) into one info + media list form.
func normalizePayload(data gjson.Result) (*model.PlaylistInfo, []mediaEntry, error) {
	if pp := data.Get("loaderData.playlist_page"); pp.Exists() {
		info := &model.PlaylistInfo{
			Title:      pp.Get("playlistInfo.title").String(),
			TrackCount: pp.Get("playlistInfo.count_tracks").Int(),
			OwnerName:  pp.Get("playlistInfo.owner.nickname").String(),
			CreateTime: pp.Get("playlistInfo.create_time").Float(),
			UpdateTime: pp.Get("playlistInfo.update_time").Float(),
		}

		var medias []mediaEntry
		pp.Get("medias").ForEach(func(_, m gjson.Result) bool {
			if m.Get("type").String() == "video" {
				video := m.Get("entity.video")
				medias = append(medias, mediaEntry{
					id:         video.Get("video_id").String(),
					kind:       model.MediaKindVideo,
					name:       video.Get("description").String(),
					durationMs: video.Get("duration").Int(),
				})
				return true
			}

			track := m.Get("entity.track")
			var artists []string
			track.Get("artists").ForEach(func(_, a gjson.Result) bool {
				artists = append(artists, a.Get("name").String())
				return true
			})
			medias = append(medias, mediaEntry{
				id:         track.Get("id").String(),
				kind:       model.MediaKindAudio,
				name:       track.Get("name").String(),
				artists:    strings.Join(artists, ", "),
				durationMs: track.Get("duration").Int(),
				albumName:  track.Get("album.name").String(),
				coverURL:   track.Get("album.url_cover.urls.0").String(),
			})
			return true
		})
		return info, medias, nil
	}

	if tp := data.Get("loaderData.track_page"); tp.Exists() {
		title := tp.Get("metaData.title").String()
		if title == "" {
			title = "单曲播放"
		}
		artist := tp.Get("metaData.artist").String()
		if artist == "" {
			artist = "未知艺术家"
		}
		now := float64(time.Now().Unix())

		info := &model.PlaylistInfo{
			Title:      title,
			TrackCount: 1,
			OwnerName:  artist,
			CreateTime: now,
			UpdateTime: now,
		}
		medias := []mediaEntry{{
			id:         tp.Get("track_id").String(),
			kind:       model.MediaKindAudio,
			name:       tp.Get("metaData.title").String(),
			artists:    tp.Get("metaData.artist").String(),
			durationMs: tp.Get("metaData.duration").Int(),
			albumName:  tp.Get("metaData.album").String(),
			coverURL:   tp.Get("metaData.cover").String(),
		}}
		return info, medias, nil
	}

	return nil, nil, fmt.Errorf("%w: router data has neither playlist_page nor track_page", ErrParse)
}
