package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const corePropsPath = "docProps/core.xml"

// DOCX lays the document out on the godocx default template. Core
// properties carry doc.Created so output is reproducible.
func DOCX(doc Document) ([]byte, error) {
	created := doc.Created
	if created.IsZero() {
		created = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	out, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("open docx template: %w", err)
	}

	if _, err := out.AddHeading(doc.Title, 0); err != nil {
		return nil, fmt.Errorf("add title: %w", err)
	}
	if doc.Subtitle != "" {
		out.AddParagraph(doc.Subtitle).Style("Subtitle")
	}
	for _, blk := range Parse(doc.Body) {
		switch blk.Kind {
		case BlockHeading:
			level := min(max(blk.Level, 1), 3)
			if _, err := out.AddHeading(blk.Text, uint(level)); err != nil {
				return nil, fmt.Errorf("add heading: %w", err)
			}
		case BlockParagraph:
			addLines(out.AddEmptyParagraph(), blk.Text)
		case BlockListItem:
			p := out.AddEmptyParagraph()
			p.Style(listStyle(blk))
			text := blk.Text
			if blk.Ordered {
				text = blk.Marker() + "\t" + text
			}
			addLines(p, text)
		case BlockCode:
			for _, line := range strings.Split(blk.Text, "\n") {
				out.AddParagraph(line).Style("MacroText")
			}
		case BlockQuote:
			addLines(out.AddEmptyParagraph(), blk.Text).Style("Quote")
		case BlockRule:
			out.AddEmptyParagraph()
		case BlockTable:
			table(out, blk.Rows)
		}
	}

	out.FileMap.Store(corePropsPath, []byte(coreProps(doc.Title, created)))

	var buf bytes.Buffer
	if err := out.Write(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return repack(buf.Bytes(), created)
}

var (
	rootTag  = regexp.MustCompile(`<([A-Za-z][\w:.-]*)((?:\s+[^\s=>]+="[^"]*")*)\s*>`)
	xmlAttrs = regexp.MustCompile(`([^\s=]+)="([^"]*)"`)
)

// repack rewrites the package with every entry stamped at modified and the
// root element attributes of each XML part in sorted order. godocx emits
// namespace declarations from a map, so their order differs between runs.
func repack(pkg []byte, modified time.Time) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if strings.HasSuffix(f.Name, ".xml") {
			data = sortRootAttrs(data)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func sortRootAttrs(data []byte) []byte {
	loc := rootTag.FindSubmatchIndex(data)
	if loc == nil {
		return data
	}
	attrs := xmlAttrs.FindAll(data[loc[4]:loc[5]], -1)
	sort.Slice(attrs, func(i, j int) bool { return bytes.Compare(attrs[i], attrs[j]) < 0 })

	var tag bytes.Buffer
	tag.WriteByte('<')
	tag.Write(data[loc[2]:loc[3]])
	for _, a := range attrs {
		tag.WriteByte(' ')
		tag.Write(a)
	}
	tag.WriteByte('>')

	out := make([]byte, 0, len(data))
	out = append(out, data[:loc[0]]...)
	out = append(out, tag.Bytes()...)
	return append(out, data[loc[1]:]...)
}

// listStyle picks a template list style by depth. Bullets come from the
// style's numbering; ordered items keep their Markdown number as text.
func listStyle(blk Block) string {
	base := "ListBullet"
	if blk.Ordered {
		base = "List"
	}
	if depth := min(blk.Depth, 2); depth > 0 {
		return fmt.Sprintf("%s%d", base, depth+1)
	}
	return base
}

// addLines appends text as runs, turning newlines into line breaks.
func addLines(p *docx.Paragraph, text string) *docx.Paragraph {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.AddRun().AddBreak(nil)
		}
		if line != "" {
			p.AddText(line)
		}
	}
	return p
}

func table(out *docx.RootDoc, rows [][]string) {
	tbl := out.AddTable()
	tbl.Style("TableGrid")
	for i, row := range rows {
		r := tbl.AddRow()
		for _, cell := range row {
			if i == 0 {
				r.AddCell().AddEmptyPara().AddText(cell).Bold(true)
				continue
			}
			r.AddCell().AddParagraph(cell)
		}
	}
	out.AddEmptyParagraph()
}

func coreProps(title string, created time.Time) string {
	ts := created.UTC().Format(time.RFC3339)
	var t bytes.Buffer
	// EscapeText only fails on writer errors; bytes.Buffer never returns one.
	_ = xml.EscapeText(&t, []byte(title))
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + t.String() + `</dc:title><dc:creator>tpagent</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:modified>` +
		`</cp:coreProperties>`
}
