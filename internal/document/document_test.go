package document

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "todocx/internal/errors"
	"todocx/internal/shared/testutil"
)

var fixedNow = time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g := NewGenerator(t.TempDir(), nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestCleanFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Meeting notes", "Meeting_notes"},
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  __spaced   out__ ", "spaced_out"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanFilename(tt.in))
	}
}

func TestDeriveFilename(t *testing.T) {
	assert.Equal(t, "Quarterly_.docx", DeriveFilename("# Quarterly review\nbody", ".docx", 10, fixedNow))
	assert.Equal(t, "Quarterly_review.md", DeriveFilename("# Quarterly review\nbody", ".md", 0, fixedNow))
	assert.Equal(t, "document_20260301_140509.md", DeriveFilename("\nbody", ".md", 0, fixedNow))
}

func TestUniqueFilename(t *testing.T) {
	dir := t.TempDir()

	name, err := UniqueFilename(dir, "a.md", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "a.md", name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a(1).md"), nil, 0644))
	name, err = UniqueFilename(dir, "a.md", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "a(2).md", name)
}

func TestGenerator_Markdown(t *testing.T) {
	g := newTestGenerator(t)

	path, err := g.Generate(context.Background(), Request{
		Content: "first line\nsecond line",
		Title:   "Lecture",
		Format:  FormatMarkdown,
	})
	require.NoError(t, err)
	assert.Equal(t, "first_line.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Lecture\n\n*Generated at: 2026-03-01 14:05:09*\n\n---\n\nfirst line\nsecond line", string(data))
}

func TestGenerator_DOCX(t *testing.T) {
	g := newTestGenerator(t)

	path, err := g.Generate(context.Background(), Request{
		Content:  "Tom & Jerry <live>\n\n  second  ",
		Title:    "Show",
		Format:   FormatDOCX,
		Filename: "show notes",
	})
	require.NoError(t, err)
	assert.Equal(t, "show_notes.docx", filepath.Base(path))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	var document string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			data, _ := io.ReadAll(rc)
			rc.Close()
			document = string(data)
		}
	}
	assert.Contains(t, names, "[Content_Types].xml")
	assert.Contains(t, names, "_rels/.rels")
	assert.Contains(t, document, "Tom &amp; Jerry &lt;live&gt;")
	assert.Contains(t, document, ">second<")
	assert.Contains(t, document, "Generated at: 2026-03-01 14:05:09")
	assert.Contains(t, document, `<w:jc w:val="center"/>`)
}

func TestGenerator_NeverOverwrites(t *testing.T) {
	g := newTestGenerator(t)
	req := Request{Content: "same", Format: FormatMarkdown}

	first, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "same.md", filepath.Base(first))
	assert.Equal(t, "same(1).md", filepath.Base(second))
}

func TestGenerator_CustomOutputDir(t *testing.T) {
	g := newTestGenerator(t)
	dir := filepath.Join(t.TempDir(), "nested", "out")

	path, err := g.Generate(context.Background(), Request{Content: "x", Format: FormatMarkdown, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestGenerator_Errors(t *testing.T) {
	g := newTestGenerator(t)

	_, err := g.Generate(context.Background(), Request{Content: "  \n", Format: FormatMarkdown})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = g.Generate(context.Background(), Request{Content: "x", Format: "pdf"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "héllo", Preview("héllo", 200))
	assert.Equal(t, "hé", Preview("héllo", 2))
}

func TestExtractEPUB(t *testing.T) {
	path := testutil.WriteEPUB(t, t.TempDir(), map[string]string{
		"ch1.xhtml": `<html><head><style>p{color:red}</style></head><body><p>Chapter one.</p><script>alert(1)</script></body></html>`,
		"ch2.xhtml": "<html><body><h1>Prologue</h1>\n<p>  It began   here.  </p></body></html>",
	})

	text, err := ExtractEPUB(path)
	require.NoError(t, err)
	assert.Equal(t, "Prologue\nIt began\nhere.\n\nChapter one.", text)
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color")

	b, err := OpenEPUB(path)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, Metadata{Title: "Sample Book", Author: "A. Writer", Language: "en"}, b.Metadata())
}

func TestExtractEPUB_NoText(t *testing.T) {
	path := testutil.WriteEPUB(t, t.TempDir(), map[string]string{
		"ch1.xhtml": `<html><body><img src="a.png"/></body></html>`,
		"ch2.xhtml": `<html><body> </body></html>`,
	})
	_, err := ExtractEPUB(path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestExtractEPUB_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.epub")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))
	_, err := ExtractEPUB(path)
	assert.Error(t, err)
}
