package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const maxNameRunes = 100

var (
	illegalChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	separators   = regexp.MustCompile(`[_\s]+`)
)

// CleanFilename replaces characters that are illegal on common filesystems,
// collapses runs of whitespace and underscores, and caps the length.
func CleanFilename(name string) string {
	cleaned := illegalChars.ReplaceAllString(name, "_")
	cleaned = strings.Trim(separators.ReplaceAllString(cleaned, "_"), "_")
	if r := []rune(cleaned); len(r) > maxNameRunes {
		cleaned = string(r[:maxNameRunes])
	}
	return cleaned
}

// DeriveFilename builds a file name from the first line of content, keeping
// at most limit runes of it (0 keeps all). Without a usable first line a
// timestamped name is used.
func DeriveFilename(content, ext string, limit int, now time.Time) string {
	first, _, _ := strings.Cut(content, "\n")
	title := CleanFilename(strings.TrimSpace(strings.ReplaceAll(first, "#", "")))
	if title == "" {
		return fmt.Sprintf("document_%s%s", now.Format("20060102_150405"), ext)
	}
	if r := []rune(title); limit > 0 && len(r) > limit {
		title = string(r[:limit])
	}
	return title + ext
}

// UniqueFilename returns name, or name(n) with the smallest n that does not
// exist yet in dir.
func UniqueFilename(dir, name string, now time.Time) (string, error) {
	exists := func(n string) (bool, error) {
		_, err := os.Stat(filepath.Join(dir, n))
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return err == nil, err
	}

	taken, err := exists(name)
	if err != nil || !taken {
		return name, err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= 1000; i++ {
		candidate := fmt.Sprintf("%s(%d)%s", stem, i, ext)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s_%d%s", stem, now.Unix(), ext), nil
}
