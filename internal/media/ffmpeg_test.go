package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
	"todocx/internal/files"
)

type call struct {
	name string
	args []string
}

func newTestFFmpeg(t *testing.T, run func(c call) ([]byte, error)) (*FFmpeg, *[]call) {
	t.Helper()
	tmp := t.TempDir()
	fm := files.NewManager(config.NewPaths(config.PathsConfig{
		ConfigDir: filepath.Join(tmp, "config"),
		TempDir:   filepath.Join(tmp, "temp"),
		OutputDir: filepath.Join(tmp, "out"),
	}))

	f := NewFFmpeg(config.Default().Media, fm, nil)
	calls := &[]call{}
	f.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		c := call{name: name, args: args}
		*calls = append(*calls, c)
		return run(c)
	}
	return f, calls
}

// touchOutput creates the last argument, like ffmpeg would
func touchOutput(c call) ([]byte, error) {
	return nil, os.WriteFile(c.args[len(c.args)-1], []byte("mp3"), 0644)
}

func TestFFmpeg_ProbeDuration(t *testing.T) {
	f, calls := newTestFFmpeg(t, func(call) ([]byte, error) { return []byte("3600.250000\n"), nil })

	d, err := f.ProbeDuration(context.Background(), "/media/talk.mp3")
	require.NoError(t, err)
	assert.Equal(t, 3600.25, d)

	require.Len(t, *calls, 1)
	assert.Equal(t, "ffprobe", (*calls)[0].name)
	assert.Equal(t, []string{"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", "/media/talk.mp3"}, (*calls)[0].args)
}

func TestFFmpeg_ProbeDurationFailures(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"tool error", "", errors.New("exit status 1")},
		{"not a number", "N/A\n", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFFmpeg(t, func(call) ([]byte, error) { return []byte(tt.out), tt.err })
			_, err := f.ProbeDuration(context.Background(), "x.mp3")
			assert.ErrorIs(t, err, apperrors.ErrProbe)
		})
	}
}

func TestFFmpeg_Compress(t *testing.T) {
	f, calls := newTestFFmpeg(t, touchOutput)

	out, err := f.Compress(context.Background(), "/media/talk.wav", "64k")
	require.NoError(t, err)

	assert.Equal(t, "compressed", filepath.Base(filepath.Dir(out)))
	assert.True(t, strings.HasPrefix(filepath.Base(out), "talk_"))
	assert.True(t, strings.HasSuffix(out, "_compressed.mp3"))
	assert.FileExists(t, out)
	require.Len(t, *calls, 1)
	assert.Equal(t, "ffmpeg", (*calls)[0].name)
	assert.Equal(t, []string{"-y", "-i", "/media/talk.wav", "-acodec", "libmp3lame",
		"-b:a", "64k", "-ar", "16000", "-ac", "1", out}, (*calls)[0].args)
}

func TestFFmpeg_CompressFailure(t *testing.T) {
	f, _ := newTestFFmpeg(t, func(call) ([]byte, error) { return nil, errors.New("exit status 1") })

	_, err := f.Compress(context.Background(), "/media/talk.wav", "64k")
	assert.ErrorIs(t, err, apperrors.ErrCompression)
}

func TestFFmpeg_FailedEncodeRemovesPartialOutput(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, f *FFmpeg) (string, error)
	}{
		{"compress", func(ctx context.Context, f *FFmpeg) (string, error) {
			return f.Compress(ctx, "/media/talk.wav", "64k")
		}},
		{"extract audio", func(ctx context.Context, f *FFmpeg) (string, error) {
			return f.ExtractAudio(ctx, "/media/lecture.mp4")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var written string
			f, _ := newTestFFmpeg(t, func(c call) ([]byte, error) {
				written = c.args[len(c.args)-1]
				require.NoError(t, os.WriteFile(written, []byte("partial"), 0644))
				return nil, errors.New("exit status 1")
			})

			_, err := tt.run(context.Background(), f)
			assert.ErrorIs(t, err, apperrors.ErrCompression)
			require.NotEmpty(t, written)
			assert.NoFileExists(t, written)
		})
	}
}

func TestFFmpeg_CompressMissingOutput(t *testing.T) {
	f, _ := newTestFFmpeg(t, func(call) ([]byte, error) { return nil, nil })

	_, err := f.Compress(context.Background(), "/media/talk.wav", "64k")
	assert.ErrorIs(t, err, apperrors.ErrCompression)
}

func TestFFmpeg_ExtractAudio(t *testing.T) {
	f, calls := newTestFFmpeg(t, touchOutput)

	out, err := f.ExtractAudio(context.Background(), "/media/lecture.mp4")
	require.NoError(t, err)

	assert.Equal(t, "audio", filepath.Base(filepath.Dir(out)))
	assert.True(t, strings.HasPrefix(filepath.Base(out), "lecture_"))
	assert.True(t, strings.HasSuffix(out, "_audio.mp3"))
	args := (*calls)[0].args
	assert.Contains(t, args, "-vn")
	assert.Equal(t, "128k", args[indexOf(args, "-b:a")+1])
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "Invalid data found", lastLine("ffmpeg version 6\nInput #0\nInvalid data found\n"))
	assert.Equal(t, "single", lastLine("single"))
}
