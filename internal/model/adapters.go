// SPDX-License-Identifier: MIT

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// The decode helpers accept the envelope shapes produced by catalog files
// and scrape workers: a single document, a list, and for scrape results a
// map keyed by part ID. Decoding is strict: unknown fields are rejected and
// every decoded value is normalised and validated.

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data after document")
	}
	return nil
}

func firstToken(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func decodeItem(data []byte, collection CollectionName) (Item, error) {
	item, ok := NewItem(collection)
	if !ok {
		return nil, NewConfigError("collection %q has no item model", collection)
	}
	if err := decodeStrict(data, item); err != nil {
		return nil, fmt.Errorf("decode %s item: %w", collection, err)
	}
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// DecodeItems reads a single item or a list of items belonging to the named
// collection. Every item is normalised and validated.
func DecodeItems(collection CollectionName, data []byte) ([]Item, error) {
	switch firstToken(data) {
	case '{':
		item, err := decodeItem(data, collection)
		if err != nil {
			return nil, err
		}
		return []Item{item}, nil
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", collection, err)
		}
		items := make([]Item, 0, len(raws))
		for i, raw := range raws {
			item, err := decodeItem(raw, collection)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("decode %s: expected object or array", collection)
	}
}

// routeItem infers the item's collection from its shape: parts carry a
// component, shops a scraper configuration or currency, everything else is
// a manufacturer. Misrouted documents fail their strict decode.
func routeItem(data []byte) (Item, error) {
	var probe struct {
		Component     json.RawMessage `json:"component"`
		ScraperConfig json.RawMessage `json:"scraper_config"`
		Currency      json.RawMessage `json:"currency"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	var collection CollectionName
	switch {
	case probe.Component != nil:
		collection = CollectionParts
	case probe.ScraperConfig != nil || probe.Currency != nil:
		collection = CollectionShops
	default:
		collection = CollectionManufacturers
	}
	return decodeItem(data, collection)
}

// DecodeAnyItems reads a single item or a mixed list of items without a
// collection hint.
func DecodeAnyItems(data []byte) ([]Item, error) {
	switch firstToken(data) {
	case '{':
		item, err := routeItem(data)
		if err != nil {
			return nil, err
		}
		return []Item{item}, nil
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode item list: %w", err)
		}
		items := make([]Item, 0, len(raws))
		for i, raw := range raws {
			item, err := routeItem(raw)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return nil, errors.New("decode items: expected object or array")
	}
}

// ResultKey renders the attribution key of a scrape-results envelope: the
// part ID, optionally followed by "/" and a variant ID.
func ResultKey(partID, variantID ID) ID {
	if variantID == "" {
		return partID
	}
	return ID(string(partID) + "/" + string(variantID))
}

// ParseResultKey splits an envelope key into part and variant IDs. The
// variant is empty when the key names only a part.
func ParseResultKey(key ID) (partID, variantID ID, err error) {
	part, variant, found := strings.Cut(string(key), "/")
	partID = ID(part)
	if err := partID.Validate(); err != nil {
		return "", "", fmt.Errorf("part id: %w", err)
	}
	if found {
		variantID = ID(variant)
		if err := variantID.Validate(); err != nil {
			return "", "", fmt.Errorf("variant id: %w", err)
		}
	}
	return partID, variantID, nil
}

// DecodeScrapeResults reads one scrape result, a list of results, or a map
// of result keys to results. Single and list forms land under the empty
// key; the caller supplies the attribution.
func DecodeScrapeResults(data []byte) (map[ID][]ScrapeResult, error) {
	validateAll := func(results map[ID][]ScrapeResult) error {
		for key, list := range results {
			if key != "" {
				if _, _, err := ParseResultKey(key); err != nil {
					return fmt.Errorf("scrape results key %q: %w", key, err)
				}
			}
			for i, r := range list {
				if err := r.Validate(); err != nil {
					return fmt.Errorf("result %d for %q: %w", i, key, err)
				}
			}
		}
		return nil
	}

	switch firstToken(data) {
	case '[':
		var list []ScrapeResult
		if err := decodeStrict(data, &list); err != nil {
			return nil, fmt.Errorf("decode scrape results: %w", err)
		}
		out := map[ID][]ScrapeResult{"": list}
		if err := validateAll(out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		// A bare result and the map form share the object shape; the
		// strict single decode settles which one this is.
		var single ScrapeResult
		if err := decodeStrict(data, &single); err == nil {
			out := map[ID][]ScrapeResult{"": {single}}
			if err := validateAll(out); err != nil {
				return nil, err
			}
			return out, nil
		}
		var keyed map[ID][]ScrapeResult
		if err := decodeStrict(data, &keyed); err != nil {
			return nil, fmt.Errorf("decode scrape results: %w", err)
		}
		if err := validateAll(keyed); err != nil {
			return nil, err
		}
		return keyed, nil
	default:
		return nil, errors.New("decode scrape results: expected object or array")
	}
}

// EncodeItems renders items as a canonical JSON list.
func EncodeItems(items []Item) ([]byte, error) {
	return json.Marshal(items)
}
