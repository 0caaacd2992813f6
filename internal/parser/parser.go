package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"finops-agent/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
	docxParagraphs = regexp.MustCompile(`</w:p>`)
)

// SupportedExtension reports whether ParseFile can read files with ext
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".txt", ".pdf", ".docx", ".pptx", ".xlsx":
		return true
	}
	return false
}

// LoadDocuments reads every supported file directly under dir, ordered by file name.
// A missing directory yields no documents.
func LoadDocuments(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("dir", dir).Msg("Knowledge directory not found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read knowledge directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []models.Document
	for _, entry := range entries {
		if entry.IsDir() || !SupportedExtension(filepath.Ext(entry.Name())) {
			continue
		}
		doc, err := ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(doc.Text) == "" {
			log.Debug().Str("file", entry.Name()).Msg("Skipping empty document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseFile extracts plain text from a knowledge document. The document is named by its base file name.
func ParseFile(filePath string) (models.Document, error) {
	name := filepath.Base(filePath)
	var (
		content string
		title   string
		err     error
	)

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".md", ".markdown":
		content, title, err = parseMarkdown(filePath)
	case ".txt":
		content, err = parseText(filePath)
	case ".pdf":
		content, err = parsePDF(filePath)
	case ".docx":
		content, err = parseDOCX(filePath)
	case ".pptx":
		content, err = parsePPTX(filePath)
	case ".xlsx":
		content, err = parseXLSX(filePath)
	default:
		return models.Document{}, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if title == "" {
		title = firstLine(content)
	}
	return models.Document{Name: name, Title: title, Text: content}, nil
}

func parseMarkdown(filePath string) (string, string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", "", err
	}
	return string(data), markdownTitle(data), nil
}

// markdownTitle returns the text of the first heading in src
func markdownTitle(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			var buf bytes.Buffer
			collectText(heading, src, &buf)
			title = strings.TrimSpace(buf.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func collectText(n ast.Node, src []byte, buf *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			continue
		}
		collectText(c, src, buf)
	}
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		content.WriteString(pageText)
		content.WriteString("\n")
	}
	return content.String(), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	raw := docxParagraphs.ReplaceAllString(r.Editable().GetContent(), "\n")
	var lines []string
	for _, line := range strings.Split(xmlTagRe.ReplaceAllString(raw, ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var content strings.Builder
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if slideText := strings.TrimSpace(extractTextFromXML(string(data))); slideText != "" {
			content.WriteString(slideText)
			content.WriteString("\n")
		}
	}
	return content.String(), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for _, sheet := range f.Sheets {
		content.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			content.WriteString(strings.Join(cells, "\t"))
			content.WriteString("\n")
		}
	}
	return content.String(), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
