package ingest

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/strata/internal/catalog"
)

// Confidence of a foreign key candidate.
const (
	ConfidenceExplicit = 1.0
	ConfidenceNaming   = 0.7
)

// Candidate is a probable foreign key from Table.Column to
// RefTable.RefColumn.
type Candidate struct {
	Table      string  `json:"table"`
	Column     string  `json:"column"`
	RefTable   string  `json:"ref_table"`
	RefColumn  string  `json:"ref_column,omitempty"`
	Confidence float64 `json:"confidence"`
	Explicit   bool    `json:"explicit"`
}

// InferForeignKeys returns the foreign key candidates of table: the
// explicit keys first, then columns named <table>_id or <table>id whose
// stem names another table, singular or plural, with a single-column
// primary key. A column yields at most one candidate per referenced
// column.
func InferForeignKeys(table *catalog.Table, all []catalog.Table, explicit []catalog.ForeignKey) []Candidate {
	fold := cases.Fold()
	seen := map[string]bool{}
	var out []Candidate
	add := func(c Candidate) {
		k := fold.String(c.Column) + "\x00" + fold.String(c.RefTable) + "\x00" + fold.String(c.RefColumn)
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, c)
	}

	covered := map[string]bool{}
	for _, fk := range explicit {
		covered[fold.String(fk.Column)] = true
		add(Candidate{
			Table:      table.Name,
			Column:     fk.Column,
			RefTable:   fk.RefTable,
			RefColumn:  fk.RefColumn,
			Confidence: ConfidenceExplicit,
			Explicit:   true,
		})
	}

	for _, col := range table.Columns {
		name := fold.String(col.Name)
		if covered[name] {
			continue
		}
		stem, ok := idStem(name)
		if !ok {
			continue
		}
		for i := range all {
			ref := &all[i]
			if strings.EqualFold(ref.Name, table.Name) || len(ref.PrimaryKey) != 1 {
				continue
			}
			if singular(fold.String(ref.Name)) != singular(stem) {
				continue
			}
			add(Candidate{
				Table:      table.Name,
				Column:     col.Name,
				RefTable:   ref.Name,
				RefColumn:  ref.PrimaryKey[0],
				Confidence: ConfidenceNaming,
			})
		}
	}
	return out
}

// idStem strips an _id or id suffix from a folded column name.
func idStem(name string) (string, bool) {
	var stem string
	switch {
	case strings.HasSuffix(name, "_id"):
		stem = strings.TrimSuffix(name, "_id")
	case strings.HasSuffix(name, "id"):
		stem = strings.TrimSuffix(name, "id")
	default:
		return "", false
	}
	stem = strings.TrimRight(stem, "_")
	return stem, stem != ""
}

// singular reduces common English plural endings.
func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "sses"), strings.HasSuffix(s, "xes"),
		strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "shes"):
		return strings.TrimSuffix(s, "es")
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s") && len(s) > 1:
		return strings.TrimSuffix(s, "s")
	}
	return s
}
