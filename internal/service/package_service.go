package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/qishuigrab/api/internal/client"
	"github.com/qishuigrab/api/internal/model"
	"github.com/qishuigrab/api/internal/progress"
	"github.com/qishuigrab/api/internal/storage"
	"github.com/qishuigrab/api/internal/transcode"
)

// PackageService downloads a client's track selection, transcodes video
// items to audio, and streams everything into a zip archive. The batch is
// all-or-nothing: any item's download or transcode failure aborts the run
// and no partial archive survives.
type PackageService struct {
	downloader client.MediaDownloader
	transcoder transcode.Transcoder
	store      *storage.Store
}

// NewPackageService creates a new packaging service.
func NewPackageService(downloader client.MediaDownloader, transcoder transcode.Transcoder, store *storage.Store) *PackageService {
	return &PackageService{
		downloader: downloader,
		transcoder: transcoder,
		store:      store,
	}
}

// Package runs the batch sequentially, emitting packaging progress after
// every item (including intentional skips). On success the finished archive
// stays on disk for retrieval and every per-run intermediate is deleted.
func (s *PackageService) Package(ctx context.Context, tracks []model.TrackSelection, sink progress.Sink) (*model.PackageResponse, error) {
	if len(tracks) == 0 {
		return nil, ErrNoSelection
	}

	runDir, err := s.store.NewRunDir()
	if err != nil {
		return nil, err
	}

	archiveName := time.Now().Format("2006-01-02-15-04-05") + "-" + uuid.New().String()[:8] + ".zip"
	archivePath := s.store.Path(archiveName)

	out, err := os.Create(archivePath)
	if err != nil {
		s.store.Remove(runDir)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	abort := func() {
		zw.Close()
		out.Close()
		s.store.Remove(runDir, archivePath)
	}

	tracker := progress.NewTracker(sink, model.OperationPackaging)
	entryNames := make(map[string]int)
	total := len(tracks)

	for i, track := range tracks {
		// Trust boundary: the selection is client-submitted, entries
		// missing a name or URL are skipped, never fatal.
		if track.Name == "" || track.DownloadURL == "" {
			log.Printf("Skipping selection entry %d: missing name or download_url", i+1)
			tracker.Update(i+1, total)
			continue
		}

		audioPath, err := s.fetchItem(ctx, runDir, i+1, track)
		if err != nil {
			abort()
			return nil, fmt.Errorf("item %q: %w", track.Name, err)
		}

		entryName := uniqueEntryName(entryNames, storage.SanitizeFileName(track.Name), i+1)
		if err := addFileEntry(zw, audioPath, entryName); err != nil {
			abort()
			return nil, fmt.Errorf("item %q: %w", track.Name, err)
		}

		tracker.Update(i+1, total)
	}

	// The archive is complete only once the central directory is flushed
	// and the file is closed.
	if err := zw.Close(); err != nil {
		out.Close()
		s.store.Remove(runDir, archivePath)
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		s.store.Remove(runDir, archivePath)
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	// Intermediates go now; the archive itself stays for client retrieval
	// (the periodic sweep collects it later).
	s.store.Remove(runDir)

	return &model.PackageResponse{ZipURL: s.store.FileURL(archiveName)}, nil
}

// fetchItem downloads one selection entry into the run directory and returns
// the path of its MP3: videos are downloaded as MP4 and transcoded, audio
// items are downloaded as-is.
func (s *PackageService) fetchItem(ctx context.Context, runDir string, seq int, track model.TrackSelection) (string, error) {
	if track.Kind == model.MediaKindVideo {
		videoPath := filepath.Join(runDir, fmt.Sprintf("%03d.mp4", seq))
		audioPath := filepath.Join(runDir, fmt.Sprintf("%03d.mp3", seq))

		if err := s.downloader.DownloadToFile(ctx, track.DownloadURL, videoPath); err != nil {
			return "", fmt.Errorf("download failed: %w", err)
		}
		if err := s.transcodeToAudio(ctx, videoPath, audioPath); err != nil {
			return "", err
		}
		return audioPath, nil
	}

	audioPath := filepath.Join(runDir, fmt.Sprintf("%03d.mp3", seq))
	if err := s.downloader.DownloadToFile(ctx, track.DownloadURL, audioPath); err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	return audioPath, nil
}

// transcodeToAudio runs the transcoder to completion. ffmpeg's exit status
// is not observable through the progress stream, so the output file is
// checked afterwards.
func (s *PackageService) transcodeToAudio(ctx context.Context, inputPath, outputPath string) error {
	progressCh, err := s.transcoder.ExtractAudio(ctx, inputPath, outputPath)
	if err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}
	for range progressCh {
		// Packaging progress is per-item; intra-item transcode percentages
		// are drained, not forwarded.
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("transcode produced no output for %s", filepath.Base(inputPath))
	}
	return nil
}

// uniqueEntryName disambiguates duplicate sanitized names so no archive
// entry silently overwrites another.
func uniqueEntryName(seen map[string]int, base string, seq int) string {
	if base == "" {
		base = fmt.Sprintf("track-%d", seq)
	}
	seen[base]++
	if n := seen[base]; n > 1 {
		base = fmt.Sprintf("%s (%d)", base, n)
	}
	return base + ".mp3"
}

func addFileEntry(zw *zip.Writer, path, entryName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", entryName, err)
	}
	return nil
}
