package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcite/integrity-engine/internal/data/repos/testutil"
	"github.com/clearcite/integrity-engine/internal/domain"
)

func TestParseFormatAllowList(t *testing.T) {
	t.Parallel()

	for _, declared := range []string{"pdf", "PDF", "docx", "txt", "text", "plain", " txt "} {
		_, err := ParseFormat(declared)
		assert.NoError(t, err, "declared=%q", declared)
	}

	for _, declared := range []string{"exe", "doc", "rtf", "html", ""} {
		_, err := ParseFormat(declared)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat, "declared=%q", declared)
	}
}

func TestIngestPlainText(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	norm, err := ing.Ingest([]byte("Hello   world\n\nthis is\ta test"), "txt")
	require.NoError(t, err)

	assert.Equal(t, "Hello world this is a test", norm.Text)
	require.Len(t, norm.Tokens, 6)
	assert.Equal(t, "Hello", norm.Tokens[0].Text)
	assert.Equal(t, "test", norm.Tokens[5].Text)

	// Byte offsets must cut the exact word back out of the text.
	for _, tok := range norm.Tokens {
		assert.Equal(t, tok.Text, norm.Text[tok.Start:tok.End])
	}
}

func TestIngestRejectsEmptyAndBlank(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	_, err := ing.Ingest(nil, "txt")
	assert.ErrorIs(t, err, domain.ErrExtraction)

	_, err = ing.Ingest([]byte("   \n\t  "), "txt")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestIngestUnsupportedFormatCreatesNoText(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	norm, err := ing.Ingest([]byte("binary payload"), "exe")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Nil(t, norm)
}

func TestIngestPDFContainerMismatch(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	_, err := ing.Ingest([]byte("just some text, not a pdf"), "pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestIngestPDFGarbageBody(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	// Valid header, garbage body: the parser must fail cleanly, never panic.
	_, err := ing.Ingest([]byte("%PDF-1.7 garbage that is not a real pdf body"), "pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestIngestDOCX(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	raw := buildDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello shared</w:t></w:r></w:p>
    <w:p><w:r><w:t>world of documents</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	norm, err := ing.Ingest(raw, "docx")
	require.NoError(t, err)
	assert.Equal(t, "Hello shared world of documents", norm.Text)
	assert.Len(t, norm.Tokens, 5)
}

func TestIngestDOCXMissingDocumentXML(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ing.Ingest(buf.Bytes(), "docx")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestIngestDOCXCorruptContainer(t *testing.T) {
	t.Parallel()
	ing := New(testutil.Logger(t))

	_, err := ing.Ingest([]byte("PK\x03\x04 but definitely not a zip"), "docx")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestNormalizeRepairsInvalidUTF8(t *testing.T) {
	t.Parallel()

	norm := Normalize("ok\xff\xfebroken")
	assert.Equal(t, "ok broken", norm.Text)
	assert.Len(t, norm.Tokens, 2)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
