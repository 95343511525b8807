package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	defaultMainPart      = "word/document.xml"
	packageRelsPart      = "_rels/.rels"
	officeDocumentRelSfx = "/officeDocument"
)

var errMainPartMissing = errors.New("main document part not found in package")

// Decoder reads the body text of an Office Open XML word-processing package.
// Each paragraph becomes one line; runs inside a paragraph are concatenated.
type Decoder struct{}

func New() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx package: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	main := files[mainPartName(files)]
	if main == nil {
		return "", errMainPartMissing
	}

	rc, err := main.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", main.Name, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", main.Name, err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

type relationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// mainPartName follows the package relationship to the main document and
// falls back to the conventional location.
func mainPartName(files map[string]*zip.File) string {
	f := files[packageRelsPart]
	if f == nil {
		return defaultMainPart
	}
	rc, err := f.Open()
	if err != nil {
		return defaultMainPart
	}
	defer rc.Close()

	var rels relationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return defaultMainPart
	}
	for _, rel := range rels.Items {
		if strings.HasSuffix(rel.Type, officeDocumentRelSfx) && rel.Target != "" {
			name := path.Clean(strings.TrimPrefix(rel.Target, "/"))
			if _, ok := files[name]; ok {
				return name
			}
		}
	}
	return defaultMainPart
}

func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
		// Local names of the open elements; tab and br only count inside a run.
		open []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			inRun := len(open) > 0 && open[len(open)-1] == "r"
			open = append(open, t.Name.Local)
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 && inRun {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 && inRun {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, current.String())
				} else {
					// Paragraph nested in a text box of the enclosing one.
					current.WriteByte('\n')
				}
			}
		}
	}
	return paragraphs, nil
}
