package document

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoText is returned for a book without any readable text
var ErrNoText = errors.New("no text content found in EPUB")

// Metadata holds the Dublin Core fields of a book
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Language  string `json:"language,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title     []string `xml:"title"`
		Creator   []string `xml:"creator"`
		Language  []string `xml:"language"`
		Publisher []string `xml:"publisher"`
	} `xml:"metadata"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// Book is an opened EPUB archive
type Book struct {
	zr      *zip.ReadCloser
	base    string
	pkg     opfPackage
	entries map[string]*zip.File
}

// OpenEPUB opens the archive at name and reads its package document
func OpenEPUB(name string) (*Book, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	b := &Book{zr: zr, entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.entries[f.Name] = f
	}

	var c container
	if err := b.decodeXML("META-INF/container.xml", &c); err != nil {
		zr.Close()
		return nil, err
	}
	if len(c.Rootfiles) == 0 {
		zr.Close()
		return nil, errors.New("epub container lists no rootfile")
	}
	opf := c.Rootfiles[0].FullPath
	b.base = path.Dir(opf)
	if err := b.decodeXML(opf, &b.pkg); err != nil {
		zr.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the archive
func (b *Book) Close() error {
	return b.zr.Close()
}

// Metadata returns the first value of each Dublin Core field
func (b *Book) Metadata() Metadata {
	first := func(v []string) string {
		if len(v) == 0 {
			return ""
		}
		return strings.TrimSpace(v[0])
	}
	m := b.pkg.Metadata
	return Metadata{
		Title:     first(m.Title),
		Author:    first(m.Creator),
		Language:  first(m.Language),
		Publisher: first(m.Publisher),
	}
}

// Text returns the readable text of every XHTML document in reading order,
// documents separated by a blank line.
func (b *Book) Text() (string, error) {
	var parts []string
	for _, href := range b.documents() {
		f, ok := b.entries[href]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", href, err)
		}
		text, err := htmlText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", href, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(parts, "\n\n"), nil
}

// documents lists XHTML entries in spine order, then any the spine omits
func (b *Book) documents() []string {
	byID := make(map[string]string)
	var all []string
	for _, item := range b.pkg.Manifest {
		if item.MediaType != "application/xhtml+xml" && item.MediaType != "text/html" {
			continue
		}
		full := path.Join(b.base, item.Href)
		byID[item.ID] = full
		all = append(all, full)
	}

	seen := make(map[string]bool)
	var ordered []string
	for _, ref := range b.pkg.Spine {
		if p, ok := byID[ref.IDRef]; ok && !seen[p] {
			ordered = append(ordered, p)
			seen[p] = true
		}
	}
	for _, p := range all {
		if !seen[p] {
			ordered = append(ordered, p)
			seen[p] = true
		}
	}
	return ordered
}

func (b *Book) decodeXML(name string, v interface{}) error {
	f, ok := b.entries[name]
	if !ok {
		return fmt.Errorf("epub is missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// ExtractEPUB returns the text of the book at name
func ExtractEPUB(name string) (string, error) {
	b, err := OpenEPUB(name)
	if err != nil {
		return "", err
	}
	defer b.Close()
	return b.Text()
}

// htmlText collects text nodes outside script and style, then trims every
// line, splits on double spaces and drops empty chunks.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var raw strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			raw.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var chunks []string
	for _, line := range strings.Split(raw.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n"), nil
}
