package parser

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/LielaXea/ecommerce-scraper/config"
)

func buildListingPage(count int) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section class=\"products\">")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&builder, "<article class=\"product_pod\">")
		fmt.Fprintf(&builder, "<h3><a href=\"catalogue/item-%d/index.html\" title=\"Item %d\">Item %d</a></h3>", i, i, i)
		fmt.Fprintf(&builder, "<p class=\"price_color\">£%d.99</p>", i)
		builder.WriteString("<p class=\"star-rating Three\"></p>")
		builder.WriteString("<p class=\"instock availability\">In stock</p>")
		fmt.Fprintf(&builder, "<img src=\"media/item-%d.jpg\" />", i)
		builder.WriteString("</article>")
	}
	builder.WriteString("</section></body></html>")
	return builder.String()
}

func TestParseExtractsAllContainers(t *testing.T) {
	p := NewPageParser(config.DefaultSelectors())

	raws := p.Parse(buildListingPage(3))
	if len(raws) != 3 {
		t.Fatalf("records = %d, want 3", len(raws))
	}

	first := raws[0]
	if first.Name != "Item 1" {
		t.Fatalf("name = %q, want %q", first.Name, "Item 1")
	}
	if first.Price != "£1.99" {
		t.Fatalf("price = %q, want %q", first.Price, "£1.99")
	}
	if first.Rating != "Three" {
		t.Fatalf("rating = %q, want %q", first.Rating, "Three")
	}
	if first.Availability != "In stock" {
		t.Fatalf("availability = %q", first.Availability)
	}
	if first.Link != "catalogue/item-1/index.html" {
		t.Fatalf("link = %q", first.Link)
	}
	if first.Image != "media/item-1.jpg" {
		t.Fatalf("image = %q", first.Image)
	}
}

func TestParseEmptyPageYieldsNoRecords(t *testing.T) {
	p := NewPageParser(config.DefaultSelectors())

	raws := p.Parse("<html><body><p>No products here.</p></body></html>")
	if len(raws) != 0 {
		t.Fatalf("records = %d, want 0", len(raws))
	}
}

func TestParseMissingSubfieldsDegrade(t *testing.T) {
	markup := `<html><body>
		<article class="product_pod">
			<h3><a>Nameless Link</a></h3>
		</article>
	</body></html>`

	p := NewPageParser(config.DefaultSelectors())
	raws := p.Parse(markup)
	if len(raws) != 1 {
		t.Fatalf("records = %d, want 1", len(raws))
	}

	raw := raws[0]
	if raw.Name != "Nameless Link" {
		t.Fatalf("name should fall back to anchor text, got %q", raw.Name)
	}
	if raw.Price != "" || raw.Rating != "" || raw.Availability != "" || raw.Link != "" || raw.Image != "" {
		t.Fatalf("missing sub-fields should be empty, got %+v", raw)
	}
}

func TestParseAvailabilityFallbackSelector(t *testing.T) {
	markup := `<article class="product_pod">
		<h3><a title="Item">Item</a></h3>
		<p class="availability">Out of stock</p>
	</article>`

	p := NewPageParser(config.DefaultSelectors())
	raws := p.Parse(markup)
	if len(raws) != 1 {
		t.Fatalf("records = %d, want 1", len(raws))
	}
	if raws[0].Availability != "Out of stock" {
		t.Fatalf("availability = %q, want fallback text", raws[0].Availability)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	p := NewPageParser(config.DefaultSelectors())
	markup := buildListingPage(5)

	first := p.Parse(markup)
	second := p.Parse(markup)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical markup should parse identically")
	}
}
