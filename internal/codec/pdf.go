package codec

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/bookforge/abridge/internal/types"
)

// PDFReader extracts text from a PDF, one unit per page. Extraction is
// best-effort: it reads string operands of the text-showing operators from
// each page's content stream, which covers simply-encoded fonts but not CID
// composite fonts. Pages with no recoverable text are skipped.
type PDFReader struct{}

var _ Reader = (*PDFReader)(nil)

func (r *PDFReader) Split(ctx context.Context, path string) ([]types.TextUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	conf.Cmd = model.EXTRACTCONTENT

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	count := pdfCtx.PageCount

	units := make([]types.TextUnit, 0, count)
	for page := 1; page <= count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rd, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", page, err)
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", page, err)
		}

		body := contentStreamText(data)
		if body == "" {
			continue
		}
		units = append(units, types.TextUnit{
			Index: len(units),
			Title: fmt.Sprintf("Page %d", page),
			Body:  body,
		})
	}

	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	return units, nil
}

// contentStreamText scrapes string operands out of a decoded content stream.
// Literal and hex strings are collected in stream order; the text-positioning
// operators Td, TD and T* mark line breaks.
func contentStreamText(data []byte) string {
	var sb strings.Builder

	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '(':
			s, next := parseLiteralString(data, i)
			sb.WriteString(s)
			i = next
		case '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i++ // dictionary, not a string
				continue
			}
			s, next := parseHexString(data, i)
			sb.WriteString(s)
			i = next
		case 'T':
			if i+1 < len(data) {
				switch data[i+1] {
				case 'd', 'D', '*':
					sb.WriteByte('\n')
					i++
				}
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// parseLiteralString reads a PDF literal string starting at the opening
// parenthesis, handling escapes and balanced nested parentheses. It returns
// the decoded text and the index of the closing parenthesis.
func parseLiteralString(data []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 1

	i := start + 1
	for i < len(data) {
		c := data[i]
		if c == '\\' && i+1 < len(data) {
			i++
			switch data[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r', 'b', 'f':
				// ignored
			case 't':
				sb.WriteByte(' ')
			case '(', ')', '\\':
				sb.WriteByte(data[i])
			case '\n':
				// line continuation
			default:
				if data[i] >= '0' && data[i] <= '7' {
					val, n := 0, 0
					for n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7' {
						val = val*8 + int(data[i]-'0')
						i++
						n++
					}
					i--
					if val >= 0x20 && val < 0x7f {
						sb.WriteByte(byte(val))
					}
				}
			}
			i++
			continue
		}

		switch c {
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}

// parseHexString reads a PDF hex string starting at '<'. Only byte pairs
// that decode to printable ASCII are kept; composite-font glyph indices are
// dropped rather than emitted as garbage.
func parseHexString(data []byte, start int) (string, int) {
	end := start + 1
	for end < len(data) && data[end] != '>' {
		end++
	}

	raw := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, string(data[start+1:end]))
	if len(raw)%2 == 1 {
		raw += "0"
	}

	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return "", end
	}

	var sb strings.Builder
	for _, b := range decoded {
		if b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
		}
	}
	return sb.String(), end
}
