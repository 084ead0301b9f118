package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
	"todocx/internal/files"
)

// commandRunner executes a program and returns stdout, or an error carrying
// stderr when it exits non-zero.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// FFmpeg probes and re-encodes media with the ffmpeg toolchain
type FFmpeg struct {
	ffmpeg         string
	ffprobe        string
	sampleRate     int
	extractBitrate string
	files          *files.Manager
	logger         *slog.Logger
	run            commandRunner
}

// NewFFmpeg creates an adapter writing artifacts where fm says
func NewFFmpeg(cfg config.MediaConfig, fm *files.Manager, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FFmpeg{
		ffmpeg:         cfg.FFmpegPath,
		ffprobe:        cfg.FFprobePath,
		sampleRate:     cfg.SampleRate,
		extractBitrate: cfg.ExtractBitrate,
		files:          fm,
		logger:         logger.With(slog.String("component", "ffmpeg")),
		run:            runCommand,
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	return f
}

// ProbeDuration returns the container duration of path in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrProbe, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", apperrors.ErrProbe, strings.TrimSpace(string(out)))
	}
	return seconds, nil
}

// Compress re-encodes src to mono MP3 at bitrate and returns the new path
func (f *FFmpeg) Compress(ctx context.Context, src, bitrate string) (string, error) {
	dst := f.files.CompressedPath(src)
	if err := f.encode(ctx, src, dst, bitrate, false); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCompression, err)
	}
	f.logSizes("Audio compressed", src, dst)
	return dst, nil
}

// ExtractAudio writes the audio track of a video as mono MP3 and returns its path
func (f *FFmpeg) ExtractAudio(ctx context.Context, video string) (string, error) {
	dst := f.files.ExtractedAudioPath(video)
	if err := f.encode(ctx, video, dst, f.extractBitrate, true); err != nil {
		return "", fmt.Errorf("%w: extract audio: %v", apperrors.ErrCompression, err)
	}
	f.logSizes("Audio extracted", video, dst)
	return dst, nil
}

func (f *FFmpeg) encode(ctx context.Context, src, dst, bitrate string, dropVideo bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	args := []string{"-y", "-i", src}
	if dropVideo {
		args = append(args, "-vn")
	}
	args = append(args,
		"-acodec", "libmp3lame",
		"-b:a", bitrate,
		"-ar", strconv.Itoa(f.sampleRate),
		"-ac", "1",
		dst)

	if _, err := f.run(ctx, f.ffmpeg, args...); err != nil {
		f.discard(ctx, dst)
		return err
	}
	if _, err := os.Stat(dst); err != nil {
		f.discard(ctx, dst)
		return fmt.Errorf("output not created: %w", err)
	}
	return nil
}

// discard removes a partial output left by a failed encode
func (f *FFmpeg) discard(ctx context.Context, dst string) {
	if _, err := files.RemoveIfExists(dst); err != nil {
		f.logger.WarnContext(ctx, "Failed to remove partial output",
			slog.String("path", dst),
			slog.String("error", err.Error()))
	}
}

func (f *FFmpeg) logSizes(msg, src, dst string) {
	before, _ := files.FileSize(src)
	after, _ := files.FileSize(dst)
	f.logger.Info(msg,
		slog.String("source", src),
		slog.String("output", dst),
		slog.Int64("source_bytes", before),
		slog.Int64("output_bytes", after))
}
