// Package lyrics finds and extracts song lyrics from letras.mus.br,
// with Google Custom Search as the primary index and a direct scrape
// of the site's search page as fallback.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/config"
)

const (
	defaultCustomSearchURL = "https://www.googleapis.com/customsearch/v1"
	defaultSiteSearchURL   = "https://www.letras.mus.br/search/"
	defaultYouTubeAPIURL   = "https://www.googleapis.com/youtube/v3/videos"

	lyricsHost = "letras.mus.br"
)

var youtubeIDRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&?]+)`)

// Result is one lyrics page candidate.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Extraction is the parsed content of one lyrics page.
type Extraction struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Lyrics string `json:"lyrics"`
}

// Locator searches for and extracts lyrics. A nil cache disables
// caching.
type Locator struct {
	apiKey         string
	searchEngineID string

	customSearchURL string
	siteSearchURL   string
	youtubeAPIURL   string

	client   *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewLocator builds a Locator from configuration. cache may be nil.
func NewLocator(cfg config.LyricsConfig, cache *redis.Client) *Locator {
	return &Locator{
		apiKey:          cfg.GoogleAPIKey,
		searchEngineID:  cfg.SearchEngineID,
		customSearchURL: defaultCustomSearchURL,
		siteSearchURL:   defaultSiteSearchURL,
		youtubeAPIURL:   defaultYouTubeAPIURL,
		client:          &http.Client{Timeout: 20 * time.Second},
		cache:           cache,
		cacheTTL:        cfg.CacheTTL,
	}
}

// Search returns lyrics page candidates for the term. Custom Search is
// used when keys are configured; on missing keys or upstream failure
// the site's own search page is scraped instead.
func (l *Locator) Search(ctx context.Context, term string) ([]Result, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.InvalidInput("search term is required")
	}

	if cached, ok := l.cachedResults(ctx, term); ok {
		return cached, nil
	}

	var results []Result
	var errSearch error
	if l.apiKey != "" && l.searchEngineID != "" {
		results, errSearch = l.searchCustom(ctx, term)
		if errSearch != nil {
			log.WithError(errSearch).Warn("custom search failed, falling back to site search")
		}
	} else {
		errSearch = apperr.Upstream("custom search keys not configured", nil)
	}
	if errSearch != nil {
		results, errSearch = l.searchSite(ctx, term)
		if errSearch != nil {
			return nil, errSearch
		}
	}

	l.storeResults(ctx, term, results)
	return results, nil
}

func (l *Locator) searchCustom(ctx context.Context, term string) ([]Result, error) {
	query := url.Values{}
	query.Set("key", l.apiKey)
	query.Set("cx", l.searchEngineID)
	query.Set("q", fmt.Sprintf("%s letra site:%s", term, lyricsHost))

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, l.customSearchURL+"?"+query.Encode(), nil)
	if errReq != nil {
		return nil, errReq
	}
	resp, errDo := l.client.Do(req)
	if errDo != nil {
		return nil, apperr.Upstream("custom search unreachable", errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Sprintf("custom search returned status %d", resp.StatusCode), nil)
	}

	var decoded struct {
		Items []Result `json:"items"`
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(&decoded); errDecode != nil {
		return nil, apperr.Upstream("custom search returned malformed response", errDecode)
	}
	if decoded.Items == nil {
		return []Result{}, nil
	}
	return decoded.Items, nil
}

func (l *Locator) searchSite(ctx context.Context, term string) ([]Result, error) {
	// The site uses dashes where a query string would use %20.
	slug := strings.ReplaceAll(url.PathEscape(term), "%20", "-")
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, l.siteSearchURL+slug+"/", nil)
	if errReq != nil {
		return nil, errReq
	}
	resp, errDo := l.client.Do(req)
	if errDo != nil {
		return nil, apperr.Upstream("lyrics site unreachable", errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Sprintf("lyrics site search returned status %d", resp.StatusCode), nil)
	}

	doc, errParse := goquery.NewDocumentFromReader(resp.Body)
	if errParse != nil {
		return nil, apperr.Upstream("lyrics site search page unparsable", errParse)
	}

	results := []Result{}
	doc.Find(".gsc-webResult").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".gs-title").Text())
		link, _ := sel.Find(".gs-title a").Attr("href")
		snippet := strings.TrimSpace(sel.Find(".gs-snippet").Text())
		if title != "" && link != "" {
			results = append(results, Result{Title: title, Link: link, Snippet: snippet})
		}
	})
	return results, nil
}

// Extract fetches a letras.mus.br page and pulls out title, author and
// lyrics text. Any other host is rejected.
func (l *Locator) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	if !strings.Contains(pageURL, lyricsHost) {
		return nil, apperr.InvalidInput("unsupported site for lyrics extraction")
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if errReq != nil {
		return nil, apperr.InvalidInput("invalid lyrics page url")
	}
	resp, errDo := l.client.Do(req)
	if errDo != nil {
		return nil, apperr.Upstream("lyrics page unreachable", errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Sprintf("lyrics page returned status %d", resp.StatusCode), nil)
	}
	doc, errParse := goquery.NewDocumentFromReader(resp.Body)
	if errParse != nil {
		return nil, apperr.Upstream("lyrics page unparsable", errParse)
	}
	return extractFromDocument(pageURL, doc)
}

// extractFromDocument walks the selector cascades the site has used
// across its layout revisions.
func extractFromDocument(pageURL string, doc *goquery.Document) (*Extraction, error) {
	title := firstText(doc,
		"h1.head-name",
		"h1.textStyle-primary",
		".title-content h1",
		"div.cnt-head_title h1",
	)
	author := firstText(doc,
		"div.head-subtitle h2 a",
		"h2.textStyle-secondary",
		"h3.head-subtitle a",
		".title-content h2 a",
	)
	if author == "" {
		author = strings.TrimSpace(doc.Find("div.head-info a").First().Text())
	}

	var lyrics string
	if strings.Contains(pageURL, "/traduccion.html") {
		lyrics = extractTranslation(doc)
	} else {
		lyrics = extractPlain(doc)
	}
	if lyrics == "" {
		return nil, apperr.Upstream("could not extract lyrics, the page layout may have changed", nil)
	}

	if title == "" {
		title = "unknown title"
	}
	if author == "" {
		author = "unknown author"
	}
	return &Extraction{Title: title, Author: author, Lyrics: tidyLyrics(lyrics)}, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstHTML(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if html, errHTML := sel.Html(); errHTML == nil && strings.TrimSpace(html) != "" {
			return html
		}
	}
	return ""
}

// extractTranslation handles translation pages, which carry the source
// and translated text side by side.
func extractTranslation(doc *goquery.Document) string {
	original := firstHTML(doc, ".letra-original")
	translated := firstHTML(doc, ".letra-traducao")
	if original == "" || translated == "" {
		original = firstHTML(doc, ".cnt-trad_l")
		translated = firstHTML(doc, ".cnt-trad_r")
	}
	if original == "" || translated == "" {
		return ""
	}
	return fmt.Sprintf("ORIGINAL:\n\n%s\n\nTRADUÇÃO:\n\n%s",
		cleanLyricsHTML(original), cleanLyricsHTML(translated))
}

func extractPlain(doc *goquery.Document) string {
	html := firstHTML(doc,
		".cnt-letra",
		".letra",
		".lyric-original",
		".letter-content",
		".lyrics",
		".letra-l",
	)
	if html == "" {
		// Last resort: the densest <br>/<p> block on the page.
		doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			content, errHTML := sel.Html()
			if errHTML != nil {
				return true
			}
			if strings.Count(content, "<br") > 4 || strings.Count(content, "<p>") > 2 {
				html = content
				return false
			}
			return true
		})
	}
	if html == "" {
		return ""
	}
	return cleanLyricsHTML(html)
}

// YouTubeThumbnail resolves a watch URL to the video's high-resolution
// thumbnail via the Data API.
func (l *Locator) YouTubeThumbnail(ctx context.Context, videoURL string) (string, error) {
	match := youtubeIDRe.FindStringSubmatch(videoURL)
	if match == nil {
		return "", apperr.InvalidInput("invalid youtube url")
	}
	if l.apiKey == "" {
		return "", apperr.Upstream("youtube api key not configured", nil)
	}

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("id", match[1])
	query.Set("key", l.apiKey)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, l.youtubeAPIURL+"?"+query.Encode(), nil)
	if errReq != nil {
		return "", errReq
	}
	resp, errDo := l.client.Do(req)
	if errDo != nil {
		return "", apperr.Upstream("youtube api unreachable", errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Upstream(fmt.Sprintf("youtube api returned status %d", resp.StatusCode), nil)
	}

	var decoded struct {
		Items []struct {
			Snippet struct {
				Thumbnails struct {
					High struct {
						URL string `json:"url"`
					} `json:"high"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(&decoded); errDecode != nil {
		return "", apperr.Upstream("youtube api returned malformed response", errDecode)
	}
	if len(decoded.Items) == 0 || decoded.Items[0].Snippet.Thumbnails.High.URL == "" {
		return "", apperr.NotFound("thumbnail not found for video")
	}
	return decoded.Items[0].Snippet.Thumbnails.High.URL, nil
}

func searchCacheKey(term string) string {
	return "lyrics:search:" + strings.ToLower(term)
}

func (l *Locator) cachedResults(ctx context.Context, term string) ([]Result, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, errGet := l.cache.Get(ctx, searchCacheKey(term)).Bytes()
	if errGet != nil {
		if errGet != redis.Nil {
			log.WithError(errGet).Warn("lyrics cache read failed")
		}
		return nil, false
	}
	var results []Result
	if errDecode := json.Unmarshal(raw, &results); errDecode != nil {
		return nil, false
	}
	return results, true
}

func (l *Locator) storeResults(ctx context.Context, term string, results []Result) {
	if l.cache == nil {
		return
	}
	raw, errMarshal := json.Marshal(results)
	if errMarshal != nil {
		return
	}
	if errSet := l.cache.Set(ctx, searchCacheKey(term), raw, l.cacheTTL).Err(); errSet != nil {
		log.WithError(errSet).Warn("lyrics cache write failed")
	}
}
