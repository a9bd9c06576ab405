package service

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/progress"
	"github.com/qishuigrab/api/internal/storage"
	"github.com/qishuigrab/api/internal/transcode"
)

// ExtractService downloads a single video and produces an MP3 from it,
// reporting transcode progress under the audio-extract operation. The
// response hands the client a reference to the file, so both temp files are
// kept for a grace window and deleted by the janitor afterwards.
type ExtractService struct {
	downloader client.MediaDownloader
	transcoder transcode.Transcoder
	store      *storage.Store
	janitor    *Janitor
}

// NewExtractService creates a new audio extraction service.
func NewExtractService(downloader client.MediaDownloader, transcoder transcode.Transcoder, store *storage.Store, janitor *Janitor) *ExtractService {
	return &ExtractService{
		downloader: downloader,
		transcoder: transcoder,
		store:      store,
		janitor:    janitor,
	}
}

// Extract runs the pipeline for one source URL. The sanitized title is only
// ever the download display name; on-disk names use a fresh uuid stem, so
// concurrent requests for identically named tracks cannot collide.
func (s *ExtractService) Extract(ctx context.Context, url, title string, sink progress.Sink) (*model.ExtractResponse, error) {
	displayName := storage.SanitizeFileName(title) + ".mp3"

	stem := uuid.New().String()
	videoPath := s.store.Path(stem + ".mp4")
	audioPath := s.store.Path(stem + ".mp3")

	if err := s.downloader.DownloadToFile(ctx, url, videoPath); err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}

	progressCh, err := s.transcoder.ExtractAudio(ctx, videoPath, audioPath)
	if err != nil {
		s.store.Remove(videoPath)
		return nil, fmt.Errorf("transcode failed: %w", err)
	}

	tracker := progress.NewTracker(sink, model.OperationAudioExtract)
	for percent := range progressCh {
		tracker.Set(percent)
	}

	if info, err := os.Stat(audioPath); err != nil || info.Size() == 0 {
		s.store.Remove(videoPath, audioPath)
		return nil, fmt.Errorf("transcode produced no output")
	}

	// The audio file must outlive this response long enough to be fetched;
	// the janitor removes both files once the grace window passes.
	s.janitor.RemoveAfterGrace(videoPath, audioPath)

	return &model.ExtractResponse{
		DownloadURL:     s.store.FileURL(stem + ".mp3"),
		DisplayFileName: displayName,
	}, nil
}
