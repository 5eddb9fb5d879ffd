package registry

import (
	"net/url"
	"strings"

	"shopping-agent/internal/domain/entity"
)

// SelectorPack adds retailer-specific stable selectors on top of the
// generic candidates.
type SelectorPack interface {
	Name() string
	Matches(u *url.URL) bool
	Enhance(d entity.ElementDescriptor) []string
	PageContext(u *url.URL) string
}

// PurposeTagger is implemented by packs that recognise what a control does
// (place_order, add_to_cart) even when it carries no visible text.
type PurposeTagger interface {
	Purpose(d entity.ElementDescriptor) string
}

type PageType string

const (
	PageCart     PageType = "cart"
	PageCheckout PageType = "checkout"
	PageProduct  PageType = "product"
	PageSearch   PageType = "search"
	PageHome     PageType = "home"
	PageUnknown  PageType = "unknown"
)

var amazonDomains = []string{
	"amazon.com", "amazon.co.uk", "amazon.ca", "amazon.de", "amazon.fr", "amazon.it",
	"amazon.es", "amazon.in", "amazon.co.jp", "amazon.com.au", "amazon.com.mx", "amazon.com.br",
}

var amazonSelectors = map[string][]string{
	"search_box": {
		"#twotabsearchtextbox",
		"input[name='field-keywords']",
		"input[type='text'][placeholder*='Search']",
	},
	"search_button": {
		"#nav-search-submit-button",
		"input[type='submit'][value='Go']",
		"#nav-search-submit-text",
	},
	"add_to_cart": {
		"#add-to-cart-button",
		"input#add-to-cart-button",
		"input[name='submit.add-to-cart']",
	},
	"buy_now": {
		"#buy-now-button",
		"input#buy-now-button",
		"button[name='submit.buy-now']",
	},
	"proceed_to_checkout": {
		"input[name='proceedToRetailCheckout']",
		"#sc-buy-box-ptc-button input",
	},
	"place_order": {
		"#placeYourOrder",
		"input[name='placeYourOrder1']",
		"#submitOrderButtonId input",
	},
}

type AmazonPack struct{}

func (AmazonPack) Name() string { return "amazon" }

func (AmazonPack) Matches(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range amazonDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (AmazonPack) Purpose(d entity.ElementDescriptor) string { return amazonPurpose(d) }

func (AmazonPack) Enhance(d entity.ElementDescriptor) []string {
	var out []string
	if purpose := amazonPurpose(d); purpose != "" {
		out = append(out, amazonSelectors[purpose]...)
	}
	out = append(out, d.Selectors...)
	if x := xpathFor(d); x != "" {
		out = append(out, x)
	}
	return dedupe(out)
}

func (AmazonPack) PageContext(u *url.URL) string {
	if pt := DetectAmazonPageType(u); pt != PageUnknown {
		return "Amazon " + string(pt) + " page"
	}
	return "Amazon page"
}

func amazonPurpose(d entity.ElementDescriptor) string {
	text := strings.ToLower(d.DisplayText())
	switch {
	case d.Name == "field-keywords" || strings.Contains(strings.ToLower(d.Placeholder), "search amazon"):
		return "search_box"
	case d.Kind == "input" && d.InputType == "submit" && strings.EqualFold(d.Text, "go"):
		return "search_button"
	case d.Name == "submit.add-to-cart" || strings.Contains(text, "add to cart"):
		return "add_to_cart"
	case d.Name == "submit.buy-now" || strings.Contains(text, "buy now"):
		return "buy_now"
	case d.Name == "proceedToRetailCheckout" || strings.Contains(text, "proceed to checkout"):
		return "proceed_to_checkout"
	case strings.HasPrefix(d.Name, "placeYourOrder") || strings.Contains(text, "place your order"):
		return "place_order"
	}
	return ""
}

// DetectAmazonPageType classifies an Amazon URL by its path.
func DetectAmazonPageType(u *url.URL) PageType {
	if u == nil {
		return PageUnknown
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "/cart"):
		return PageCart
	case strings.Contains(path, "/checkout") || strings.Contains(path, "/gp/buy") || strings.Contains(path, "/spc/"):
		return PageCheckout
	case strings.Contains(path, "/dp/") || strings.Contains(path, "/gp/product/"):
		return PageProduct
	case path == "/s" || strings.HasPrefix(path, "/s/") || u.Query().Get("k") != "":
		return PageSearch
	case path == "" || path == "/":
		return PageHome
	}
	return PageUnknown
}
