// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// idPattern constrains catalog identifiers to lowercase ASCII, digits and
// underscores.
var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ID identifies an item within its collection.
type ID string

func (id ID) String() string { return string(id) }

// Validate checks the identifier against the ID character set.
func (id ID) Validate() error {
	if !idPattern.MatchString(string(id)) {
		return fmt.Errorf("id %q must match %s", string(id), idPattern.String())
	}
	return nil
}

var idReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

// IDFromName derives an identifier from a display name: the name is
// NFC-normalised and lowercased, spaces, dashes and dots become underscores,
// and every remaining character outside the ID set is dropped. The result may
// be empty when the name contains no usable characters; callers must validate.
func IDFromName(name string) ID {
	s := norm.NFC.String(name)
	s = idReplacer.Replace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return ID(b.String())
}
