package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	rpdf "rsc.io/pdf"
)

// maxPDFBytes bounds how much of an attachment we read.
const maxPDFBytes = 8 << 20

var attachmentAnchorRegex = regexp.MustCompile(`(?i)(guidelines|call document|annex|attachments?|terms of reference|tor\b|application pack|timeline|deadlines)`)

// isPDFURL reports whether a URL points at a PDF document directly.
func isPDFURL(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), ".pdf")
}

// collectAttachmentPDFLinks finds likely call-document links on a page.
func collectAttachmentPDFLinks(baseURL, htmlBody string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	baseParsed, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		hrefLower := strings.ToLower(strings.TrimSpace(href))
		anchorText := strings.TrimSpace(strings.ToLower(sel.Text()))
		isLikelyDoc := strings.Contains(hrefLower, ".pdf") ||
			(attachmentAnchorRegex.MatchString(anchorText) && strings.Contains(hrefLower, "download"))
		if !isLikelyDoc {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseParsed.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})

	return out
}

// fetchPDFText downloads a PDF attachment and extracts its text.
func fetchPDFText(ctx context.Context, fetcher Fetcher, pdfURL string) (string, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	defer doc.Body.Close()

	if !strings.Contains(strings.ToLower(doc.ContentType), "pdf") &&
		!strings.Contains(strings.ToLower(pdfURL), ".pdf") {
		return "", fmt.Errorf("not a pdf: %s (%s)", pdfURL, doc.ContentType)
	}

	content, err := io.ReadAll(io.LimitReader(doc.Body, maxPDFBytes))
	if err != nil {
		return "", err
	}

	return extractPDFText(content)
}

func extractPDFText(content []byte) (text string, err error) {
	// rsc.io/pdf panics on malformed files.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return sanitizeUTF8(builder.String()), nil
}
