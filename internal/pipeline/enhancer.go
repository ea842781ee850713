package pipeline

import (
	"context"
	"io"
	"log"
	"strings"
	"time"
)

// teaserBodyThreshold marks body text too short to be the full announcement.
// Below it the enhancer re-crawls the source page before extraction.
const teaserBodyThreshold = 600

// maxAttachmentsPerItem caps how many PDF attachments we parse for one item.
const maxAttachmentsPerItem = 2

// maxPageBytes bounds how much of a re-crawled page we read.
const maxPageBytes = 4 << 20

// Enhancer fills Record.Enriched with structured funding data. It never
// fails an item: every miss is a degradation logged on the record, and the
// item proceeds to scoring with whatever was recovered.
type Enhancer struct {
	AI      AICapability
	Fetcher Fetcher
	Now     func() time.Time
}

func NewEnhancer(capability AICapability, fetcher Fetcher) *Enhancer {
	return &Enhancer{AI: capability, Fetcher: fetcher, Now: time.Now}
}

// Enhance enriches the record in place. The returned error is only for
// transient AI failures the orchestrator should retry; crawl and parse
// misses degrade silently into record.Errors.
func (e *Enhancer) Enhance(ctx context.Context, record *Record) error {
	record.EnrichmentAttempted = true

	fullText := record.Item.BodyText
	pageHTML := ""

	// A URL that is itself a PDF gets parsed as one; running it through the
	// HTML pipeline would shred the bytes.
	if isPDFURL(record.Item.URL) && e.Fetcher != nil {
		if pdfText := e.attachmentText(ctx, record); pdfText != "" {
			fullText = fullText + "\n\n" + pdfText
		}
	} else {
		if len(fullText) < teaserBodyThreshold && e.Fetcher != nil && record.Item.URL != "" {
			crawled, html, err := e.deepCrawl(ctx, record.Item.URL)
			if err != nil {
				log.Printf("Enhancer: deep crawl failed for %s: %v", record.Item.URL, err)
				record.AppendError(StageEnriched, err)
			} else if len(crawled) > len(fullText) {
				fullText = crawled
				pageHTML = html
			}
		}

		if pageHTML != "" && e.Fetcher != nil {
			if links := collectAttachmentPDFLinks(record.Item.URL, pageHTML); len(links) > 0 {
				fullText = fullText + "\n\n" + e.collectAttachments(ctx, record, links)
			}
		}
	}

	fullText = TruncateText(cleanText(fullText), 12000)

	if e.AI != nil {
		extracted, err := e.AI.ExtractFundingFields(ctx, record.Item.Title, record.Item.URL, fullText)
		if err != nil {
			return err
		}
		e.applyExtracted(record, extracted.AmountMin, extracted.AmountMax, extracted.Currency,
			extracted.DeadlineISO, extracted.Eligibility, extracted.ContactInfo, extracted.Summary)
	}

	e.fillFromText(record, fullText)
	return nil
}

func (e *Enhancer) applyExtracted(record *Record, amountMin, amountMax float64, currency, deadlineISO string, eligibility []string, contactInfo, summary string) {
	if amountMin > 0 {
		record.Enriched.FundingAmountMin = amountMin
	}
	if amountMax > 0 {
		record.Enriched.FundingAmountMax = amountMax
	}
	if currency != "" {
		record.Enriched.Currency = strings.ToUpper(strings.TrimSpace(currency))
	}
	if deadlineISO != "" {
		if parsed, err := parseDate(deadlineISO); err == nil {
			deadline := toEndOfDay(parsed)
			record.Enriched.Deadline = &deadline
		} else {
			log.Printf("Enhancer: unparseable deadline %q for %s", deadlineISO, record.Item.URL)
		}
	}
	if len(eligibility) > 0 {
		record.Enriched.Eligibility = mergeUniqueFold(record.Enriched.Eligibility, eligibility)
	}
	if contactInfo != "" {
		record.Enriched.ContactInfo = strings.TrimSpace(contactInfo)
	}
	if summary != "" {
		record.Enriched.Summary = strings.TrimSpace(summary)
	}
}

// fillFromText backfills fields the AI pass missed using local parsers.
func (e *Enhancer) fillFromText(record *Record, text string) {
	if record.Enriched.FundingAmountMin == 0 && record.Enriched.FundingAmountMax == 0 {
		amountMin, amountMax, currency := parseAmount(text, record.Enriched.Currency)
		record.Enriched.FundingAmountMin = amountMin
		record.Enriched.FundingAmountMax = amountMax
		if record.Enriched.Currency == "" && (amountMin > 0 || amountMax > 0) {
			record.Enriched.Currency = currency
		}
	}

	if record.Enriched.Deadline == nil {
		now := time.Now()
		if e.Now != nil {
			now = e.Now()
		}
		record.Enriched.Deadline = findDeadlineNear(text, now)
	}

	if record.Enriched.Summary == "" {
		record.Enriched.Summary = TruncateText(cleanText(record.Item.BodyText), 400)
	}
}

func (e *Enhancer) deepCrawl(ctx context.Context, pageURL string) (string, string, error) {
	doc, err := e.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", "", err
	}
	defer doc.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(doc.Body, maxPageBytes))
	if err != nil {
		return "", "", err
	}

	html := SanitizeHTML(string(raw))
	return HTMLToText(html), html, nil
}

// attachmentText handles the case where the item URL itself points at a PDF.
func (e *Enhancer) attachmentText(ctx context.Context, record *Record) string {
	text, err := fetchPDFText(ctx, e.Fetcher, record.Item.URL)
	if err != nil {
		log.Printf("Enhancer: pdf extraction failed for %s: %v", record.Item.URL, err)
		record.AppendError(StageEnriched, err)
		return ""
	}
	return cleanText(text)
}

func (e *Enhancer) collectAttachments(ctx context.Context, record *Record, links []string) string {
	var parts []string
	for i, link := range links {
		if i >= maxAttachmentsPerItem {
			break
		}
		text, err := fetchPDFText(ctx, e.Fetcher, link)
		if err != nil {
			log.Printf("Enhancer: attachment fetch failed for %s: %v", link, err)
			record.AppendError(StageEnriched, err)
			continue
		}
		parts = append(parts, cleanText(text))
	}
	return strings.Join(parts, "\n\n")
}
