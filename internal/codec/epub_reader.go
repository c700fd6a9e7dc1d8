package codec

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bookforge/abridge/internal/types"
)

// EPUBReader extracts chapter text from an epub archive in spine order.
// Navigation documents and empty chapters are skipped, so unit indices stay
// dense even when the spine carries non-content items.
type EPUBReader struct{}

var _ Reader = (*EPUBReader)(nil)

func (r *EPUBReader) Split(ctx context.Context, epubPath string) ([]types.TextUnit, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := rootfilePath(files)
	if err != nil {
		return nil, err
	}
	pkg, err := parsePackage(files, opfPath)
	if err != nil {
		return nil, err
	}

	hrefs := make(map[string]manifestItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefs[item.ID] = item
	}

	opfDir := path.Dir(opfPath)
	units := make([]types.TextUnit, 0, len(pkg.Spine.Refs))
	for _, ref := range pkg.Spine.Refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, ok := hrefs[ref.IDRef]
		if !ok {
			return nil, fmt.Errorf("spine references unknown manifest item %q", ref.IDRef)
		}
		if item.MediaType != "application/xhtml+xml" || strings.Contains(item.Properties, "nav") {
			continue
		}

		entry := path.Join(opfDir, item.Href)
		f, ok := files[entry]
		if !ok {
			return nil, fmt.Errorf("manifest item %q missing from archive: %s", item.ID, entry)
		}

		title, body, err := extractChapter(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read chapter %s: %w", entry, err)
		}
		if body == "" {
			continue
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", len(units)+1)
		}
		units = append(units, types.TextUnit{
			Index: len(units),
			Title: title,
			Body:  body,
		})
	}

	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	return units, nil
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfPackage struct {
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Refs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// rootfilePath locates the package document via META-INF/container.xml.
func rootfilePath(files map[string]*zip.File) (string, error) {
	f, ok := files["META-INF/container.xml"]
	if !ok {
		return "", fmt.Errorf("not a valid epub: missing META-INF/container.xml")
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open container.xml: %w", err)
	}
	defer rc.Close()

	var container struct {
		Rootfiles []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfiles>rootfile"`
	}
	if err := xml.NewDecoder(rc).Decode(&container); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container.xml declares no rootfile")
	}
	return container.Rootfiles[0].FullPath, nil
}

func parsePackage(files map[string]*zip.File, opfPath string) (*opfPackage, error) {
	f, ok := files[opfPath]
	if !ok {
		return nil, fmt.Errorf("package document missing from archive: %s", opfPath)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open package document: %w", err)
	}
	defer rc.Close()

	var pkg opfPackage
	if err := xml.NewDecoder(rc).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}
	return &pkg, nil
}

func extractChapter(f *zip.File) (title, body string, err error) {
	rc, err := f.Open()
	if err != nil {
		return "", "", err
	}
	defer rc.Close()
	return extractXHTML(rc)
}

// extractXHTML strips a chapter document down to its plain text. The title
// comes from the first h1-h3 heading, falling back to the head <title>;
// heading text captured as the title is excluded from the body. Paragraph
// boundaries become blank lines.
func extractXHTML(r io.Reader) (title, body string, err error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		sb         strings.Builder
		headingBuf strings.Builder
		docTitle   strings.Builder
		heading    string
		inTitle    bool
		inHeading  bool
		inBody     bool
		skipDepth  int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("malformed xhtml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch strings.ToLower(el.Name.Local) {
			case "script", "style":
				skipDepth++
			case "title":
				inTitle = true
			case "body":
				inBody = true
			case "h1", "h2", "h3":
				if heading == "" {
					inHeading = true
				}
			case "br":
				if inBody {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch strings.ToLower(el.Name.Local) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "title":
				inTitle = false
			case "h1", "h2", "h3":
				if inHeading {
					heading = strings.Join(strings.Fields(headingBuf.String()), " ")
					inHeading = false
				}
				sb.WriteString("\n\n")
			case "p", "div", "section", "blockquote", "li", "tr", "h4", "h5", "h6", "hr":
				if inBody {
					sb.WriteString("\n\n")
				}
			}
		case xml.CharData:
			if skipDepth > 0 {
				continue
			}
			switch {
			case inTitle:
				docTitle.Write(el)
			case inHeading:
				headingBuf.Write(el)
			case inBody:
				sb.Write(el)
			}
		}
	}

	title = heading
	if title == "" {
		title = strings.Join(strings.Fields(docTitle.String()), " ")
	}
	return title, normalizeText(sb.String()), nil
}

// normalizeText collapses intra-paragraph whitespace and drops empty
// paragraphs, keeping blank lines as the paragraph separator.
func normalizeText(s string) string {
	var paras []string
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para != "" {
			paras = append(paras, para)
		}
	}
	return strings.Join(paras, "\n\n")
}
