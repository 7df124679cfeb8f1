// Package epi parses epidemiological line lists and aggregates them into
// per-district case counts on the temporal period grid.
package epi

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ColumnRoles names the line-list columns carrying each role. Empty
// fields are resolved by header detection.
type ColumnRoles struct {
	Date     string
	District string
	State    string // optional
}

// Detection candidates per role, in preference order. Matching is
// against canonicalized headers (lowercased, spaces to underscores).
var (
	dateCandidates     = []string{"date_of_onset", "onset_date", "date_of_report", "report_date", "date"}
	districtCandidates = []string{"lga_name", "lga", "district", "lga_of_residence"}
	stateCandidates    = []string{"state_name", "state", "state_of_residence"}
)

// canonHeader lowercases a header and collapses separators, so
// "Date of Onset" and "date_of_onset" resolve identically.
func canonHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// resolvedColumns holds the header indices after role resolution.
type resolvedColumns struct {
	date     int
	district int
	state    int // -1 when absent
}

// resolveColumns maps the configured (or detected) roles onto header
// indices. An unresolvable date or district column is a structural
// error: without them no row of the file can be used.
func resolveColumns(header []string, roles ColumnRoles) (resolvedColumns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		c := canonHeader(h)
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}

	find := func(configured string, candidates []string) int {
		if configured != "" {
			if i, ok := idx[canonHeader(configured)]; ok {
				return i
			}
			return -1
		}
		for _, c := range candidates {
			if i, ok := idx[c]; ok {
				return i
			}
		}
		return -1
	}

	out := resolvedColumns{
		date:     find(roles.Date, dateCandidates),
		district: find(roles.District, districtCandidates),
		state:    find(roles.State, stateCandidates),
	}
	if out.date < 0 {
		return resolvedColumns{}, eris.Errorf("epi: no date column found (configured %q, header %v)", roles.Date, header)
	}
	if out.district < 0 {
		return resolvedColumns{}, eris.Errorf("epi: no district column found (configured %q, header %v)", roles.District, header)
	}
	if roles.State != "" && out.state < 0 {
		zap.L().With(zap.String("component", "epi")).Warn("configured state column not in header",
			zap.String("column", roles.State),
		)
	}
	return out, nil
}
