// Package scraper extracts promo material (metadata and screenshots) from web pages.
package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/promoforge/internal/promo"
)

// Engine names reported on ScrapedAsset.Engine and in metrics.
const (
	EngineHeadless = "headless"
	EngineStatic   = "static"
)

// NoDescription is used when a page carries neither a description nor an og:description.
const NoDescription = "No description available"

// pageMeta is the raw head metadata of a page, before fallbacks are applied.
type pageMeta struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	OGDescription  string `json:"ogDescription"`
	ThemeColor     string `json:"themeColor"`
	Icon           string `json:"icon"`
	AppleTouchIcon string `json:"appleTouchIcon"`
	Keywords       string `json:"keywords"`
	OGImage        string `json:"ogImage"`
}

// buildAsset applies the metadata fallbacks. pageURL is the final page location, used to
// resolve relative icon links.
func buildAsset(
	requested string,
	pageURL string,
	meta pageMeta,
	screenshots []string,
	engine string,
	now time.Time,
) promo.ScrapedAsset {
	description := firstNonEmpty(meta.Description, meta.OGDescription, NoDescription)
	themeColor := firstNonEmpty(meta.ThemeColor, promo.DefaultThemeColor)
	logo := firstNonEmpty(meta.Icon, meta.AppleTouchIcon)
	if logo != "" {
		logo = absolute(pageURL, logo)
	}
	if screenshots == nil {
		screenshots = []string{}
	}
	return promo.ScrapedAsset{
		URL:         requested,
		Title:       strings.TrimSpace(meta.Title),
		Description: description,
		Screenshots: screenshots,
		Logo:        logo,
		ThemeColor:  themeColor,
		Keywords:    splitKeywords(meta.Keywords),
		Engine:      engine,
		Timestamp:   now,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// absolute resolves ref against base. Unparseable input is returned unchanged.
func absolute(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func splitKeywords(raw string) []string {
	keywords := []string{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// scrollPositions returns count evenly spaced fractions of the page height starting at 0.
func scrollPositions(count int) []float64 {
	positions := make([]float64, 0, count)
	for i := range count {
		positions = append(positions, float64(i)/float64(count))
	}
	return positions
}
