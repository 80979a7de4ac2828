// SPDX-License-Identifier: MIT

// Package model defines the catalog data model of the price tracker: parts,
// manufacturers, shops, the scraper configuration shops carry and the scrape
// results reported back by workers.
package model

import (
	"fmt"

	"github.com/eardbi/bike-builds-api/internal/validate"
)

// CollectionName names a top-level catalog collection.
type CollectionName string

const (
	CollectionParts         CollectionName = "parts"
	CollectionManufacturers CollectionName = "manufacturers"
	CollectionShops         CollectionName = "shops"
	CollectionPrices        CollectionName = "prices"
)

// CollectionNames lists all collections in stable order.
func CollectionNames() []CollectionName {
	return []CollectionName{CollectionParts, CollectionManufacturers, CollectionShops, CollectionPrices}
}

// ItemCollections lists the collections that carry catalog items. The prices
// collection is an observation stream and has no item model.
func ItemCollections() []CollectionName {
	return []CollectionName{CollectionParts, CollectionManufacturers, CollectionShops}
}

// HasItems reports whether the collection carries catalog items.
func (c CollectionName) HasItems() bool {
	_, ok := NewItem(c)
	return ok
}

// ParseCollection resolves a collection name from its string form.
func ParseCollection(s string) (CollectionName, error) {
	for _, c := range CollectionNames() {
		if s == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// NewItem returns a fresh zero item for the collection, or false for
// collections without an item model.
func NewItem(c CollectionName) (Item, bool) {
	switch c {
	case CollectionParts:
		return &Part{}, true
	case CollectionManufacturers:
		return &Manufacturer{}, true
	case CollectionShops:
		return &Shop{}, true
	default:
		return nil, false
	}
}

// ScrapeTargetName names a field a scrape worker can extract from a page.
type ScrapeTargetName string

const (
	TargetURL          ScrapeTargetName = "url"
	TargetName         ScrapeTargetName = "name"
	TargetManufacturer ScrapeTargetName = "manufacturer"
	TargetPrice        ScrapeTargetName = "price"
	TargetAvailable    ScrapeTargetName = "available"
	TargetRating       ScrapeTargetName = "rating"
	TargetDiscount     ScrapeTargetName = "discount"
)

// ScrapeTargetNames lists all scrape targets in stable order.
func ScrapeTargetNames() []ScrapeTargetName {
	return []ScrapeTargetName{
		TargetURL, TargetName, TargetManufacturer, TargetPrice,
		TargetAvailable, TargetRating, TargetDiscount,
	}
}

// ComponentName names the part category a catalog part belongs to.
type ComponentName string

const (
	ComponentFrame         ComponentName = "frame"
	ComponentFork          ComponentName = "fork"
	ComponentHeadset       ComponentName = "headset"
	ComponentShock         ComponentName = "shock"
	ComponentBottomBracket ComponentName = "bottom_bracket"
	ComponentWheel         ComponentName = "wheel"
	ComponentTire          ComponentName = "tire"
	ComponentHandlebar     ComponentName = "handlebar"
	ComponentStem          ComponentName = "stem"
	ComponentSeatpost      ComponentName = "seatpost"
	ComponentSaddle        ComponentName = "saddle"
	ComponentCrankset      ComponentName = "crankset"
	ComponentChainring     ComponentName = "chainring"
	ComponentChain         ComponentName = "chain"
	ComponentCassette      ComponentName = "cassette"
	ComponentDerailleur    ComponentName = "derailleur"
	ComponentBrake         ComponentName = "brake"
	ComponentPedal         ComponentName = "pedal"
	ComponentFender        ComponentName = "fender"
	ComponentTool          ComponentName = "tool"
	ComponentOther         ComponentName = "other"
)

// ComponentNames lists all part components in stable order.
func ComponentNames() []ComponentName {
	return []ComponentName{
		ComponentFrame, ComponentFork, ComponentHeadset, ComponentShock,
		ComponentBottomBracket, ComponentWheel, ComponentTire,
		ComponentHandlebar, ComponentStem, ComponentSeatpost, ComponentSaddle,
		ComponentCrankset, ComponentChainring, ComponentChain,
		ComponentCassette, ComponentDerailleur, ComponentBrake,
		ComponentPedal, ComponentFender, ComponentTool, ComponentOther,
	}
}

// Currency is an ISO 4217 code from the supported set.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
)

// Currencies lists the supported currencies in stable order.
func Currencies() []Currency {
	return []Currency{CurrencyEUR, CurrencyUSD, CurrencyGBP, CurrencyCHF}
}

// Rating is a 0..5 product rating.
type Rating int

// Validate checks the rating bounds.
func (r Rating) Validate() error {
	if r < 0 || r > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %d", int(r))
	}
	return nil
}

// Item is a catalog entry that lives in one of the item collections.
type Item interface {
	Kind() CollectionName
	ItemID() ID
	ItemName() string

	// Normalize fills derived defaults, most notably an ID inferred from
	// the name when none is set. Validate assumes Normalize has run.
	Normalize()
	Validate() error
}

var (
	_ Item = (*Part)(nil)
	_ Item = (*Manufacturer)(nil)
	_ Item = (*Shop)(nil)
)

// Price is an amount in a supported currency.
type Price struct {
	Value    float64  `json:"value"`
	Currency Currency `json:"currency"`
}

// Validate checks the currency against the supported set.
func (p Price) Validate() error {
	v := validate.New()
	v.OneOf("currency", string(p.Currency), currencyStrings())
	return v.Err()
}

// PriceTag carries the purchase signals observed for one listing. At least
// one field must be set.
type PriceTag struct {
	Price     *Price  `json:"price,omitempty"`
	Available *bool   `json:"available,omitempty"`
	Rating    *Rating `json:"rating,omitempty"`
	Discount  *bool   `json:"discount,omitempty"`
}

// IsEmpty reports whether no signal is set.
func (t PriceTag) IsEmpty() bool {
	return t.Price == nil && t.Available == nil && t.Rating == nil && t.Discount == nil
}

// Validate enforces the non-empty invariant and the per-field constraints.
func (t PriceTag) Validate() error {
	v := validate.New()
	if t.IsEmpty() {
		v.AddError("price_tag", "at least one field must be set", nil)
	}
	if t.Price != nil {
		v.Merge("price", t.Price.Validate())
	}
	if t.Rating != nil {
		if err := t.Rating.Validate(); err != nil {
			v.AddError("rating", err.Error(), int(*t.Rating))
		}
	}
	return v.Err()
}

// Listing places a part variant in a shop: the variables feed the shop's
// page scraper configuration.
type Listing struct {
	ShopID    ID             `json:"shop_id"`
	Variables map[string]any `json:"variables"`
}

// Validate checks the shop reference and the variables map.
func (l Listing) Validate() error {
	v := validate.New()
	if err := l.ShopID.Validate(); err != nil {
		v.AddError("shop_id", err.Error(), string(l.ShopID))
	}
	if len(l.Variables) == 0 {
		v.AddError("variables", "at least one variable must be set", nil)
	}
	return v.Err()
}

// PartVariant is a purchasable variation of a part, e.g. a size or colour.
type PartVariant struct {
	Name     string    `json:"name"`
	ID       ID        `json:"id,omitempty"`
	Listings []Listing `json:"listings,omitempty"`
}

// Normalize infers the variant ID from its name when unset.
func (pv *PartVariant) Normalize() {
	if pv.ID == "" {
		pv.ID = IDFromName(pv.Name)
	}
}

// Validate checks the variant and its listings.
func (pv *PartVariant) Validate() error {
	v := validate.New()
	v.Length("name", pv.Name, 1, 200)
	if err := pv.ID.Validate(); err != nil {
		v.AddError("id", err.Error(), string(pv.ID))
	}
	for i, l := range pv.Listings {
		v.Merge(fmt.Sprintf("listings[%d]", i), l.Validate())
	}
	return v.Err()
}

// Part is a bike part tracked by the catalog.
type Part struct {
	Name           string        `json:"name"`
	ID             ID            `json:"id,omitempty"`
	Component      ComponentName `json:"component"`
	ManufacturerID ID            `json:"manufacturer_id"`
	Year           *int          `json:"year,omitempty"`
	Variants       []PartVariant `json:"variants,omitempty"`
}

// Kind implements Item.
func (p *Part) Kind() CollectionName { return CollectionParts }

// ItemID implements Item.
func (p *Part) ItemID() ID { return p.ID }

// ItemName implements Item.
func (p *Part) ItemName() string { return p.Name }

// Normalize infers missing IDs on the part and its variants.
func (p *Part) Normalize() {
	if p.ID == "" {
		p.ID = IDFromName(p.Name)
	}
	for i := range p.Variants {
		p.Variants[i].Normalize()
	}
}

// Validate checks the part, its references and its variants.
func (p *Part) Validate() error {
	v := validate.New()
	v.Length("name", p.Name, 1, 200)
	if err := p.ID.Validate(); err != nil {
		v.AddError("id", err.Error(), string(p.ID))
	}
	v.OneOf("component", string(p.Component), componentStrings())
	if err := p.ManufacturerID.Validate(); err != nil {
		v.AddError("manufacturer_id", err.Error(), string(p.ManufacturerID))
	}
	for i := range p.Variants {
		v.Merge(fmt.Sprintf("variants[%d]", i), p.Variants[i].Validate())
	}
	return v.Err()
}

// Manufacturer is a maker of parts.
type Manufacturer struct {
	Name string `json:"name"`
	ID   ID     `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Kind implements Item.
func (m *Manufacturer) Kind() CollectionName { return CollectionManufacturers }

// ItemID implements Item.
func (m *Manufacturer) ItemID() ID { return m.ID }

// ItemName implements Item.
func (m *Manufacturer) ItemName() string { return m.Name }

// Normalize infers the manufacturer ID from its name when unset.
func (m *Manufacturer) Normalize() {
	if m.ID == "" {
		m.ID = IDFromName(m.Name)
	}
}

// Validate checks the manufacturer. The URL is optional.
func (m *Manufacturer) Validate() error {
	v := validate.New()
	v.Length("name", m.Name, 1, 200)
	if err := m.ID.Validate(); err != nil {
		v.AddError("id", err.Error(), string(m.ID))
	}
	if m.URL != "" {
		v.URL("url", m.URL, []string{"http", "https"})
	}
	return v.Err()
}

// Shop is a store selling parts, together with the scraper configuration
// used to read its pages.
type Shop struct {
	Name     string        `json:"name"`
	ID       ID            `json:"id,omitempty"`
	URL      string        `json:"url"`
	Currency Currency      `json:"currency"`
	Scraper  ScraperConfig `json:"scraper_config"`
}

// Kind implements Item.
func (s *Shop) Kind() CollectionName { return CollectionShops }

// ItemID implements Item.
func (s *Shop) ItemID() ID { return s.ID }

// ItemName implements Item.
func (s *Shop) ItemName() string { return s.Name }

// Normalize infers the shop ID and applies scraper config defaults.
func (s *Shop) Normalize() {
	if s.ID == "" {
		s.ID = IDFromName(s.Name)
	}
	s.Scraper.Normalize()
}

// Validate checks the shop and its scraper configuration.
func (s *Shop) Validate() error {
	v := validate.New()
	v.Length("name", s.Name, 1, 200)
	if err := s.ID.Validate(); err != nil {
		v.AddError("id", err.Error(), string(s.ID))
	}
	v.URL("url", s.URL, []string{"http", "https"})
	v.OneOf("currency", string(s.Currency), currencyStrings())
	v.Merge("scraper_config", s.Scraper.Validate())
	return v.Err()
}

func currencyStrings() []string {
	out := make([]string, 0, len(Currencies()))
	for _, c := range Currencies() {
		out = append(out, string(c))
	}
	return out
}

func componentStrings() []string {
	out := make([]string, 0, len(ComponentNames()))
	for _, c := range ComponentNames() {
		out = append(out, string(c))
	}
	return out
}
