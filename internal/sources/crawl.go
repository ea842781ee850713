package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// CrawlAdapter scrapes a listing page with configurable CSS selectors and
// yields one item per listing entry. Rate limiting and robots.txt handling
// come from colly.
type CrawlAdapter struct {
	cfg SourceConfig
}

func NewCrawlAdapter(cfg SourceConfig) *CrawlAdapter {
	return &CrawlAdapter{cfg: cfg}
}

func (a *CrawlAdapter) ID() string { return a.cfg.ID }

func (a *CrawlAdapter) collector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent("fund-radar/1.0 (+https://github.com/amara/fund-radar)"),
		colly.MaxBodySize(10*1024*1024),
		colly.AllowURLRevisit(),
	)

	delay := time.Second
	if a.cfg.Fetch.RateLimitRPS > 0 {
		delay = time.Duration(float64(time.Second) / a.cfg.Fetch.RateLimitRPS)
	}
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})

	timeout := 30 * time.Second
	if a.cfg.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(a.cfg.Fetch.TimeoutSeconds) * time.Second
	}
	c.SetRequestTimeout(timeout)

	return c
}

func (a *CrawlAdapter) Discover(ctx context.Context) (<-chan ItemResult, error) {
	if a.cfg.Selectors.Container == "" {
		return nil, fmt.Errorf("crawl source %q has no container selector", a.cfg.ID)
	}

	out := make(chan ItemResult)
	go func() {
		defer close(out)

		emit := func(res ItemResult) bool {
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		c := a.collector()
		count := 0

		c.OnHTML(a.cfg.Selectors.Container, func(e *colly.HTMLElement) {
			if ctx.Err() != nil {
				return
			}
			if a.cfg.MaxItems > 0 && count >= a.cfg.MaxItems {
				return
			}

			linkSel := a.cfg.Selectors.Link
			if linkSel == "" {
				linkSel = "a"
			}
			href := e.ChildAttr(linkSel, "href")
			if href == "" {
				return
			}
			link := e.Request.AbsoluteURL(href)

			title := strings.TrimSpace(e.ChildText(a.cfg.Selectors.Title))
			if title == "" {
				title = strings.TrimSpace(e.ChildText(linkSel))
			}

			body := ""
			if a.cfg.Selectors.Content != "" {
				body = strings.TrimSpace(e.ChildText(a.cfg.Selectors.Content))
			}

			count++
			emit(ItemResult{Item: RawContentItem{
				ID:           itemID(a.cfg.ID, link),
				SourceType:   SourceCrawl,
				SourceName:   a.cfg.Name,
				URL:          link,
				Title:        title,
				BodyText:     body,
				DiscoveredAt: time.Now().UTC(),
				RawMetadata: map[string]string{
					"listing_url": a.cfg.URL,
				},
			}})
		})

		c.OnError(func(r *colly.Response, err error) {
			emit(ItemResult{Err: fmt.Errorf("crawl %s: %w", r.Request.URL, err)})
		})

		if err := c.Visit(a.cfg.URL); err != nil {
			emit(ItemResult{Err: fmt.Errorf("crawl visit %s: %w", a.cfg.URL, err)})
			return
		}
		c.Wait()
	}()

	return out, nil
}
