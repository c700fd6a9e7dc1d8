package codec

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookforge/abridge/internal/types"
)

// EPUBWriter produces an ePub 3.0 document from condensed units, one chapter
// per unit. Metadata fields are optional; the title defaults to the output
// filename.
type EPUBWriter struct {
	Title    string
	Author   string
	Language string // ISO 639-1 code (e.g., "en")
}

var _ Writer = (*EPUBWriter)(nil)

func (w *EPUBWriter) Merge(ctx context.Context, units []types.UnitOutcome, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(units) == 0 {
		return ErrNoUnits
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	title := w.Title
	if title == "" {
		title = titleFromFilename(outPath)
	}
	return w.WriteTo(f, title, units)
}

// WriteTo writes the complete epub archive to out. Chapters are ordered by
// unit index regardless of the order units arrive in.
func (w *EPUBWriter) WriteTo(out io.Writer, title string, units []types.UnitOutcome) error {
	ordered := make([]types.UnitOutcome, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	identifier := "urn:uuid:" + uuid.New().String()
	zw := zip.NewWriter(out)

	// mimetype must be the first entry and stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		return err
	}

	entries := []struct {
		name    string
		content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", w.packageDocument(identifier, title, ordered)},
		{"OEBPS/nav.xhtml", w.navigationDocument(ordered)},
		{"OEBPS/toc.ncx", w.ncxDocument(identifier, title, ordered)},
		{"OEBPS/styles/style.css", stylesheet},
	}
	for _, entry := range entries {
		ew, err := zw.Create(entry.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", entry.name, err)
		}
		if _, err := ew.Write([]byte(entry.content)); err != nil {
			return err
		}
	}

	for i, unit := range ordered {
		name := fmt.Sprintf("OEBPS/chapters/%s.xhtml", chapterID(i))
		cw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := cw.Write([]byte(chapterXHTML(unit))); err != nil {
			return fmt.Errorf("failed to write chapter %d: %w", unit.Index, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func chapterID(i int) string {
	return fmt.Sprintf("ch_%03d", i+1)
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// packageDocument creates the content.opf package document.
func (w *EPUBWriter) packageDocument(identifier, title string, units []types.UnitOutcome) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", identifier))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(title)))
	if w.Author != "" {
		sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(w.Author)))
	}

	lang := w.Language
	if lang == "" {
		lang = "en"
	}
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", lang))
	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		time.Now().UTC().Format("2006-01-02T15:04:05Z")))
	sb.WriteString("  </metadata>\n\n")

	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")
	for i := range units {
		id := chapterID(i)
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", id, id))
	}
	sb.WriteString("  </manifest>\n\n")

	sb.WriteString("  <spine toc=\"ncx\">\n")
	for i := range units {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", chapterID(i)))
	}
	sb.WriteString("  </spine>\n")
	sb.WriteString("</package>\n")

	return sb.String()
}

// navigationDocument creates the nav.xhtml navigation document.
func (w *EPUBWriter) navigationDocument(units []types.UnitOutcome) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="styles/style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
`)
	for i, unit := range units {
		sb.WriteString(fmt.Sprintf("      <li><a href=\"chapters/%s.xhtml\">%s</a></li>\n",
			chapterID(i), escapeXML(displayTitle(unit))))
	}
	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)

	return sb.String()
}

// ncxDocument creates the toc.ncx for ePub 2 compatibility.
func (w *EPUBWriter) ncxDocument(identifier, title string, units []types.UnitOutcome) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="`)
	sb.WriteString(identifier)
	sb.WriteString(`"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle>
    <text>`)
	sb.WriteString(escapeXML(title))
	sb.WriteString(`</text>
  </docTitle>
  <navMap>
`)
	for i, unit := range units {
		sb.WriteString(fmt.Sprintf("    <navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", i+1, i+1))
		sb.WriteString(fmt.Sprintf("      <navLabel><text>%s</text></navLabel>\n", escapeXML(displayTitle(unit))))
		sb.WriteString(fmt.Sprintf("      <content src=\"chapters/%s.xhtml\"/>\n", chapterID(i)))
		sb.WriteString("    </navPoint>\n")
	}
	sb.WriteString(`  </navMap>
</ncx>
`)

	return sb.String()
}

// chapterXHTML converts a unit's plain text to a chapter document.
// Paragraphs are blank-line separated in the source text.
func chapterXHTML(unit types.UnitOutcome) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(displayTitle(unit)))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)
	sb.WriteString(fmt.Sprintf("<h1 class=\"chapter-title\">%s</h1>\n", escapeXML(displayTitle(unit))))

	for _, para := range strings.Split(unit.Body, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		if para == "* * *" {
			sb.WriteString("<hr/>\n")
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(escapeXML(para))
		sb.WriteString("</p>\n")
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func displayTitle(unit types.UnitOutcome) string {
	if unit.Title != "" {
		return unit.Title
	}
	return fmt.Sprintf("Chapter %d", unit.Index+1)
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

const stylesheet = `body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-size: 1.8em;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

p:first-of-type,
h1 + p {
  text-indent: 0;
}

hr {
  border: none;
  text-align: center;
  margin: 1.5em 0;
}

.chapter-title {
  text-align: center;
  margin-top: 3em;
  margin-bottom: 2em;
}
`
