package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// wParagraph matches <w:p>...</w:p> with any attributes. <w:pPr> and
	// self-closing <w:p/> elements are not matched.
	wParagraph = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/])?>(.*?)</w:p>`)
	// wText matches the text runs inside a paragraph.
	wText = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*[^/])?>(.*?)</w:t>`)
	// overrideTag matches one Override element of [Content_Types].xml.
	overrideTag = regexp.MustCompile(`<Override[^>]*>`)
	partNameRe  = regexp.MustCompile(`PartName="([^"]+)"`)
)

// findDocxMainDocumentPath finds the main document part from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	types, err := readZipEntry(zr, contentTypesPath)
	if err != nil || types == nil {
		return ""
	}
	for _, tag := range overrideTag.FindAllString(string(types), -1) {
		if !strings.Contains(tag, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameRe.FindStringSubmatch(tag); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

// extractDOCX returns one line per paragraph of a .docx. Only <w:t> runs are
// read, so field codes and deleted-text markup do not leak into the result.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var lines []string
	for _, p := range wParagraph.FindAllStringSubmatch(string(docXML), -1) {
		var runs strings.Builder
		for _, r := range wText.FindAllStringSubmatch(p[1], -1) {
			runs.WriteString(r[1])
		}
		if line := blockText(runs.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
