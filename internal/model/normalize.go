package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// NormalizeName canonicalizes a district or state name: trims surrounding
// whitespace, collapses interior runs of whitespace, and title-cases.
// "FUNE " and " fune" both normalize to "Fune".
func NormalizeName(s string) string {
	return titleCaser.String(strings.Join(strings.Fields(s), " "))
}
