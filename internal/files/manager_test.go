package files

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocx/internal/config"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "quota.dat")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "license.dat")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	existed, err := RemoveIfExists(path)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = RemoveIfExists(path)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestManagerPaths(t *testing.T) {
	paths := config.NewPaths(config.PathsConfig{
		ConfigDir: "/cfg",
		TempDir:   "/tmp/todocx",
		OutputDir: "/out",
	})
	m := NewManager(paths)

	assert.Regexp(t, `^talk_[0-9a-f]{8}_compressed\.mp3$`, filepath.Base(m.CompressedPath("/media/talk.wav")))
	assert.Equal(t, filepath.Join("/tmp/todocx", "compressed"), filepath.Dir(m.CompressedPath("/media/talk.wav")))
	assert.Regexp(t, `^clip_[0-9a-f]{8}_audio\.mp3$`, filepath.Base(m.ExtractedAudioPath("clip.mp4")))
	assert.Equal(t, filepath.Join("/tmp/todocx", "audio"), filepath.Dir(m.ExtractedAudioPath("clip.mp4")))
	assert.Equal(t, "talk", Stem("/media/talk.wav"))
}

func TestArtifactPathsAreUniquePerCall(t *testing.T) {
	m := NewManager(config.NewPaths(config.PathsConfig{TempDir: "/tmp/todocx"}))

	a := m.CompressedPath("/home/u/a/talk.wav")
	b := m.CompressedPath("/home/u/b/talk.flac")
	again := m.CompressedPath("/home/u/a/talk.wav")
	assert.NotEqual(t, a, b, "same stem from different folders")
	assert.NotEqual(t, a, again, "same source requested twice")

	assert.NotEqual(t, m.ExtractedAudioPath("/v/clip.mp4"), m.ExtractedAudioPath("/w/clip.mkv"))
}

func TestOutputPath(t *testing.T) {
	m := NewManager(config.NewPaths(config.PathsConfig{OutputDir: "/out"}))

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"report.docx", false},
		{"", true},
		{"..", true},
		{"../secret.txt", true},
		{"sub/report.docx", true},
		{`sub\report.docx`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.OutputPath(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join("/out", tt.name), got)
		})
	}
}
