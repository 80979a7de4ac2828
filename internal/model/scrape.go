// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"regexp"

	"github.com/eardbi/bike-builds-api/internal/validate"
)

// ScraperMode selects how a worker drives the shop's pages.
type ScraperMode string

const (
	ScraperModeBrowser  ScraperMode = "browser"
	ScraperModeHeadless ScraperMode = "headless"
)

// ScraperModes lists the supported scraper modes in stable order.
func ScraperModes() []ScraperMode {
	return []ScraperMode{ScraperModeBrowser, ScraperModeHeadless}
}

// ScrapeField tells a worker how to extract one target from a page: a CSS
// selector, optionally an attribute to read instead of the text content and
// a pattern with at most one capture group applied to the raw value.
type ScrapeField struct {
	Selector string `json:"selector"`
	Attr     string `json:"attr,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// Validate checks the selector and the optional pattern.
func (f ScrapeField) Validate() error {
	v := validate.New()
	v.NotEmpty("selector", f.Selector)
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			v.AddError("pattern", fmt.Sprintf("invalid pattern: %v", err), f.Pattern)
		} else if re.NumSubexp() > 1 {
			v.AddError("pattern", fmt.Sprintf("pattern must have at most one capture group, got %d", re.NumSubexp()), f.Pattern)
		}
	}
	return v.Err()
}

// placeholderPattern finds {variable} spans in url_extra templates.
var placeholderPattern = regexp.MustCompile(`\{(.*?)\}`)

// PageScraperConfig describes how to reach and read one kind of page on a
// shop: url_extra is appended to the shop URL after substituting the
// declared variables, fields maps scrape targets to their extraction rules.
type PageScraperConfig struct {
	URLExtra  string                           `json:"url_extra"`
	Variables []string                         `json:"variables,omitempty"`
	Fields    map[ScrapeTargetName]ScrapeField `json:"fields"`
}

// Placeholders returns the {variable} names referenced by URLExtra in order
// of appearance.
func (c PageScraperConfig) Placeholders() []string {
	matches := placeholderPattern.FindAllStringSubmatch(c.URLExtra, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Validate checks that every placeholder is declared and that the field map
// is present with valid targets.
func (c PageScraperConfig) Validate() error {
	v := validate.New()
	declared := make(map[string]bool, len(c.Variables))
	for _, name := range c.Variables {
		declared[name] = true
	}
	for _, ph := range c.Placeholders() {
		if !declared[ph] {
			v.AddError("url_extra", fmt.Sprintf("variable %q not defined in variables", ph), c.URLExtra)
		}
	}
	if c.Fields == nil {
		v.AddError("fields", "field map is required", nil)
	}
	targets := make([]string, 0, len(ScrapeTargetNames()))
	for _, t := range ScrapeTargetNames() {
		targets = append(targets, string(t))
	}
	for name, field := range c.Fields {
		v.OneOf("fields", string(name), targets)
		v.Merge(fmt.Sprintf("fields[%s]", name), field.Validate())
	}
	return v.Err()
}

// SearchScraperConfig is the page configuration of a shop's search: its only
// variable is the query.
type SearchScraperConfig struct {
	PageScraperConfig
}

// Normalize applies the default query variable when none is declared.
func (c *SearchScraperConfig) Normalize() {
	if c.Variables == nil {
		c.Variables = []string{"query"}
	}
}

// Validate requires the variables to be exactly ["query"].
func (c SearchScraperConfig) Validate() error {
	v := validate.New()
	if len(c.Variables) != 1 || c.Variables[0] != "query" {
		v.AddError("variables", fmt.Sprintf("variables %v must be omitted or contain only \"query\"", c.Variables), c.Variables)
	}
	v.Merge("", c.PageScraperConfig.Validate())
	return v.Err()
}

// ScraperConfig bundles everything a worker needs to scrape one shop.
type ScraperConfig struct {
	Mode   ScraperMode                  `json:"mode"`
	Part   map[string]PageScraperConfig `json:"part"`
	Search SearchScraperConfig          `json:"search"`
}

// Normalize applies nested defaults.
func (c *ScraperConfig) Normalize() {
	c.Search.Normalize()
}

// Validate checks the mode and the nested page configurations.
func (c ScraperConfig) Validate() error {
	v := validate.New()
	modes := make([]string, 0, len(ScraperModes()))
	for _, m := range ScraperModes() {
		modes = append(modes, string(m))
	}
	v.OneOf("mode", string(c.Mode), modes)
	if c.Part == nil {
		v.AddError("part", "page configuration map is required", nil)
	}
	for key, cfg := range c.Part {
		v.Merge(fmt.Sprintf("part[%s]", key), cfg.Validate())
	}
	v.Merge("search", c.Search.Validate())
	return v.Err()
}

// ScrapeResult carries the values a worker extracted from one page. Every
// field is optional; the field set is fixed to the scrape target names.
type ScrapeResult struct {
	URL          *string `json:"url,omitempty"`
	Name         *string `json:"name,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Price        *Price  `json:"price,omitempty"`
	Available    *bool   `json:"available,omitempty"`
	Rating       *Rating `json:"rating,omitempty"`
	Discount     *bool   `json:"discount,omitempty"`
}

// PriceTag projects the purchase signals of the result. The projection may
// be empty when the result only carries discovery fields.
func (r ScrapeResult) PriceTag() PriceTag {
	return PriceTag{
		Price:     r.Price,
		Available: r.Available,
		Rating:    r.Rating,
		Discount:  r.Discount,
	}
}

// Validate checks the optional fields that carry constrained values.
func (r ScrapeResult) Validate() error {
	v := validate.New()
	if r.URL != nil {
		v.URL("url", *r.URL, []string{"http", "https"})
	}
	if r.Price != nil {
		v.Merge("price", r.Price.Validate())
	}
	if r.Rating != nil {
		if err := r.Rating.Validate(); err != nil {
			v.AddError("rating", err.Error(), int(*r.Rating))
		}
	}
	return v.Err()
}
