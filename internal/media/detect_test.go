package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
)

func TestDetector_Kind(t *testing.T) {
	d := NewDetector(config.Default().Media, nil)

	tests := []struct {
		path string
		want Kind
	}{
		{"talk.mp3", KindAudio},
		{"TALK.WAV", KindAudio},
		{"clip.m4a", KindAudio},
		{"lecture.mp4", KindVideo},
		{"lecture.MKV", KindVideo},
		{"book.epub", KindEbook},
		{"notes.txt", KindUnknown},
		{"noext", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Kind(tt.path))
		})
	}
}

func TestDetector_ExtensionsWithoutDot(t *testing.T) {
	d := NewDetector(config.MediaConfig{AudioExtensions: []string{"opus", " "}}, nil)
	assert.Equal(t, KindAudio, d.Kind("a.opus"))
	assert.Equal(t, KindUnknown, d.Kind("a."))
}

func TestDetector_Detect(t *testing.T) {
	dir := t.TempDir()
	d := NewDetector(config.Default().Media, nil)

	audio := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0644))
	kind, err := d.Detect(audio)
	require.NoError(t, err)
	assert.Equal(t, KindAudio, kind)

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("x"), 0644))
	_, err = d.Detect(text)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedKind)

	_, err = d.Detect(filepath.Join(dir, "missing.mp3"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	sub := filepath.Join(dir, "folder.mp3")
	require.NoError(t, os.Mkdir(sub, 0755))
	_, err = d.Detect(sub)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestKind_Billable(t *testing.T) {
	assert.True(t, KindAudio.Billable())
	assert.True(t, KindVideo.Billable())
	assert.False(t, KindEbook.Billable())
	assert.Equal(t, "video", KindVideo.String())
}
