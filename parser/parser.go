// Package parser extracts and validates product records from listing markup.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/LielaXea/ecommerce-scraper/config"
	"github.com/LielaXea/ecommerce-scraper/models"
)

// PageParser locates product blocks in listing markup using the structural
// selectors it was configured with.
type PageParser struct {
	sel config.Selectors
}

// NewPageParser builds a parser for the given site selectors.
func NewPageParser(sel config.Selectors) *PageParser {
	return &PageParser{sel: sel}
}

// Parse extracts one RawProduct per product container found in markup.
// Missing sub-fields degrade to empty strings; a page with no containers
// yields zero records. Parse never fails the page.
func (p *PageParser) Parse(markup string) []models.RawProduct {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var raws []models.RawProduct
	doc.Find(p.sel.Container).Each(func(_ int, s *goquery.Selection) {
		raws = append(raws, models.RawProduct{
			Name:         p.extractName(s),
			Price:        strings.TrimSpace(s.Find(p.sel.Price).First().Text()),
			Rating:       p.extractRating(s),
			Availability: p.extractAvailability(s),
			Link:         s.Find(p.sel.Link).First().AttrOr("href", ""),
			Image:        s.Find(p.sel.Image).First().AttrOr("src", ""),
		})
	})
	return raws
}

func (p *PageParser) extractName(s *goquery.Selection) string {
	node := s.Find(p.sel.Name).First()
	if title, ok := node.Attr("title"); ok {
		return title
	}
	return strings.TrimSpace(node.Text())
}

// extractRating pulls the rating word out of the element's class list,
// e.g. class="star-rating Three" yields "Three".
func (p *PageParser) extractRating(s *goquery.Selection) string {
	class := s.Find(p.sel.Rating).First().AttrOr("class", "")
	parts := strings.Fields(class)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

func (p *PageParser) extractAvailability(s *goquery.Selection) string {
	text := strings.TrimSpace(s.Find(p.sel.Availability).First().Text())
	if text == "" && p.sel.Fallback != "" {
		text = strings.TrimSpace(s.Find(p.sel.Fallback).First().Text())
	}
	return text
}
