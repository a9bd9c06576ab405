// Package transcode wraps the external ffmpeg binary behind a small
// capability interface so the pipelines can consume transcode progress
// uniformly whether ffmpeg runs once or N times.
package transcode

import (
	"context"
	"fmt"
	"math"

	"github.com/floostack/transcoder/ffmpeg"

	"github.com/qishuigrab/api/internal/config"
)

// Transcoder strips the video stream from inputPath and encodes the audio to
// MP3 at outputPath. The returned channel is a finite, non-restartable
// sequence of whole-percent completion values; it closes when ffmpeg exits.
// ffmpeg's exit status is not observable through the stream, so callers must
// verify the output file afterwards.
type Transcoder interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) (<-chan int, error)
}

// FFmpegTranscoder implements Transcoder on the ffmpeg/ffprobe binaries.
type FFmpegTranscoder struct {
	cfg *config.FFmpegConfig
}

// NewFFmpegTranscoder creates a new ffmpeg-backed transcoder.
func NewFFmpegTranscoder(cfg *config.FFmpegConfig) *FFmpegTranscoder {
	return &FFmpegTranscoder{cfg: cfg}
}

// ExtractAudio starts `ffmpeg -i input -vn -acodec libmp3lame output` and
// forwards floored percent values from ffmpeg's progress reports.
func (t *FFmpegTranscoder) ExtractAudio(ctx context.Context, inputPath, outputPath string) (<-chan int, error) {
	audioCodec := "libmp3lame"
	skipVideo := true
	overwrite := true

	opts := ffmpeg.Options{
		AudioCodec: &audioCodec,
		SkipVideo:  &skipVideo,
		Overwrite:  &overwrite,
	}

	ffmpegCfg := &ffmpeg.Config{
		FfmpegBinPath:   t.cfg.BinPath,
		FfprobeBinPath:  t.cfg.ProbePath,
		ProgressEnabled: true,
	}

	progress, err := ffmpeg.
		New(ffmpegCfg).
		Input(inputPath).
		Output(outputPath).
		Start(opts)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg start failed: %w", err)
	}

	out := make(chan int, 16)
	go func() {
		defer close(out)
		for v := range progress {
			select {
			case out <- int(math.Floor(v.GetProgress())):
			case <-ctx.Done():
				// Keep draining so ffmpeg's stderr reader doesn't block;
				// the listener has gone away.
			}
		}
	}()
	return out, nil
}
