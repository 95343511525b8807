package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func buildPackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

func TestDecodeParagraphsAndRuns(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"word/document.xml": documentXML(
			`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>World</w:t></w:r></w:p>` +
				`<w:p/>` +
				`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`,
		),
	})

	text, err := New().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := "Hello World\n\na\tb\nc"
	if text != want {
		t.Fatalf("Decode() = %q, want %q", text, want)
	}
}

func TestDecodeIgnoresTabStopDefinitions(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"word/document.xml": documentXML(
			`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:leader="dot" w:pos="9350"/></w:tabs></w:pPr>` +
				`<w:r><w:t>Total</w:t></w:r></w:p>` +
				`<w:p><w:pPr><w:tabs><w:tab w:val="right" w:pos="9350"/></w:tabs></w:pPr>` +
				`<w:r><w:t>Intro</w:t></w:r><w:r><w:tab/><w:t>3</w:t></w:r></w:p>`,
		),
	})

	text, err := New().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := "Total\nIntro\t3"
	if text != want {
		t.Fatalf("Decode() = %q, want %q", text, want)
	}
}

func TestDecodeSkipsDeletedAndFieldText(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"word/document.xml": documentXML(
			`<w:p><w:del><w:r><w:delText>gone</w:delText></w:r></w:del><w:r><w:instrText>PAGE</w:instrText></w:r><w:r><w:t>kept</w:t></w:r></w:p>`,
		),
	})

	text, err := New().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "kept" {
		t.Fatalf("Decode() = %q, want %q", text, "kept")
	}
}

func TestDecodeFollowsPackageRelationship(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"_rels/.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="/custom/main.xml"/></Relationships>`,
		"custom/main.xml": documentXML(`<w:p><w:r><w:t>relocated</w:t></w:r></w:p>`),
	})

	text, err := New().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "relocated" {
		t.Fatalf("Decode() = %q", text)
	}
}

func TestDecodeIgnoresHeaderAndFooterParts(t *testing.T) {
	data := buildPackage(t, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>` +
			`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/></Types>`,
		"word/document.xml": documentXML(`<w:p><w:r><w:t>Body</w:t></w:r></w:p>`),
		"word/header1.xml":  `<w:hdr ` + wordNS + `><w:p><w:r><w:t>Confidential</w:t></w:r></w:p></w:hdr>`,
		"word/footer1.xml":  `<w:ftr ` + wordNS + `><w:p><w:r><w:t>Page 1</w:t></w:r></w:p></w:ftr>`,
	})

	text, err := New().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "Body" {
		t.Fatalf("Decode() = %q, want only the main part", text)
	}
}

func TestDecodeCorruptPackage(t *testing.T) {
	if _, err := New().Decode([]byte("PK\x03\x04 definitely not a zip")); err == nil {
		t.Fatalf("expected error for corrupt package")
	}
	if _, err := New().Decode(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestDecodeMissingMainPart(t *testing.T) {
	data := buildPackage(t, map[string]string{"docProps/core.xml": "<x/>"})

	if _, err := New().Decode(data); !errors.Is(err, errMainPartMissing) {
		t.Fatalf("expected missing part error, got %v", err)
	}
}

func TestDecodeMalformedXML(t *testing.T) {
	data := buildPackage(t, map[string]string{"word/document.xml": "<w:document><w:body><w:p>"})

	if _, err := New().Decode(data); err == nil {
		t.Fatalf("expected error for malformed document xml")
	}
}
