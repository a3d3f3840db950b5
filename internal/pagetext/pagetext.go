// Package pagetext fetches a web page and reduces it to the raw text and
// link list the ingestor consumes. It is the fetch/render collaborator in
// front of the extraction core.
package pagetext

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/iptvterm/terminator/internal/httpclient"
)

const FetchTimeout = 15 * time.Second

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:109.0) Gecko/20100101 Firefox/115.0"

// Fetch downloads the page and returns its visible text split into lines,
// with every link href appended as an extra line so URL-embedded
// credentials in anchors are not lost.
func Fetch(ctx context.Context, pageURL string) ([]string, error) {
	if u, err := url.Parse(pageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("fetch %s: not an http(s) url", pageURL)
	}
	client := httpclient.WithTimeout(FetchTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	reader, err := charset.NewReader(httpclient.BodyReader(resp), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return Lines(doc), nil
}

// Lines flattens a parsed document into ingest input.
func Lines(doc *goquery.Document) []string {
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, l := range strings.Split(doc.Find("body").Text(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				lines = append(lines, href)
			}
		}
	})
	return lines
}
