package model

// PlaylistInfo summarizes the playlist (or single track) behind a share link.
// Resolved once per request, never persisted.
type PlaylistInfo struct {
	Title       string  `json:"title"`
	TrackCount  int64   `json:"track_count"`
	ActualCount int     `json:"actual_count"`
	OwnerName   string  `json:"owner_name"`
	CreateTime  float64 `json:"create_time"`
	UpdateTime  float64 `json:"update_time"`
	CoverURL    string  `json:"coverUrl,omitempty"`
}

// TrackItem is one media entry of a resolved playlist. DownloadURL is nil
// when per-item resolution failed; the batch is never aborted for that.
type TrackItem struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"kind"`
	Name        string    `json:"name"`
	Artists     string    `json:"artists,omitempty"`
	Duration    int64     `json:"duration"`
	AlbumName   string    `json:"album_name,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	DownloadURL *string   `json:"download_url"`
}

// Pagination describes the slice of the playlist returned by one request.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// PlaylistResponse is the aggregated result of GET /api/playlist.
type PlaylistResponse struct {
	PlaylistInfo PlaylistInfo `json:"playlist_info"`
	Items        []TrackItem  `json:"items"`
	Pagination   Pagination   `json:"pagination"`
}

// TrackSelection is one client-submitted entry of a packaging selection.
// Name and DownloadURL cross a trust boundary and are re-checked before use;
// entries missing either are skipped, not rejected.
type TrackSelection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        MediaKind `json:"kind" validate:"omitempty,oneof=audio video"`
	DownloadURL string    `json:"download_url"`
}

// PackageRequest represents the request body for POST /api/packageSelected.
type PackageRequest struct {
	Tracks []TrackSelection `json:"tracks" validate:"required,min=1,dive"`
	Token  string           `json:"token" validate:"omitempty,max=128"`
}

// PackageResponse carries the retrievable location of the finished archive.
type PackageResponse struct {
	ZipURL string `json:"zipUrl"`
}

// ExtractResponse carries the retrievable location of the extracted audio
// plus the sanitized name the client should save it under.
type ExtractResponse struct {
	DownloadURL     string `json:"downloadUrl"`
	DisplayFileName string `json:"displayFileName"`
}
