// Package viz decides which chart representations a tabular result supports
// and transforms its rows into each representation's series shape.
package viz

import (
	"errors"
	"strconv"

	"github.com/reportal-io/reportal/internal/tabular"
)

// Kind identifies a view representation.
type Kind string

const (
	// KindTable renders the result unmodified.
	KindTable Kind = "table"
	// KindPie renders a share view of one categorical and one numeric column.
	KindPie Kind = "pie"
	// KindBar renders a magnitude view; same series shape as pie.
	KindBar Kind = "bar"
	// KindLine renders a trend view over a position axis.
	KindLine Kind = "line"
)

// ErrUnsupportedViewKind reports an eligibility request for a kind outside
// table/pie/bar/line. This is a caller contract violation, not a user error.
var ErrUnsupportedViewKind = errors.New("unsupported view kind")

// unknownLabel is the placeholder for empty category values in share series.
const unknownLabel = "unknown"

// Point is a single transformed data point. For pie/bar series Label holds
// the category; for line series it holds the position along the trend axis.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Evaluation is the outcome of an eligibility check. Series is populated only
// for eligible pie/bar/line kinds; table is an identity transform and leaves
// Series nil.
type Evaluation struct {
	Kind     Kind    `json:"kind"`
	Eligible bool    `json:"eligible"`
	Series   []Point `json:"series,omitempty"`
}

// Evaluate decides whether the requested kind can be rendered for the result
// and, if so, synthesizes the transformed series. It is a pure computation
// over already-fetched data; row order is preserved in every series.
func Evaluate(res tabular.Result, classes map[string]tabular.Class, kind Kind) (Evaluation, error) {
	switch kind {
	case KindTable, KindPie, KindBar, KindLine:
	default:
		return Evaluation{}, ErrUnsupportedViewKind
	}

	if kind == KindTable {
		return Evaluation{Kind: kind, Eligible: true}, nil
	}

	sel := selectColumns(res, classes)

	switch kind {
	case KindPie, KindBar:
		if !sel.hasNumeric || !sel.hasCategorical {
			return Evaluation{Kind: kind}, nil
		}
		return Evaluation{Kind: kind, Eligible: true, Series: shareSeries(res, sel)}, nil
	default: // KindLine
		if !sel.hasNumeric {
			return Evaluation{Kind: kind}, nil
		}
		return Evaluation{Kind: kind, Eligible: true, Series: trendSeries(res, sel)}, nil
	}
}

// selection holds the category/value columns chosen for charting.
type selection struct {
	category       string
	value          string
	hasNumeric     bool
	hasCategorical bool
}

// selectColumns applies the column-selection policy:
//
//  1. Partition columns into numeric and categorical, preserving original
//     column order.
//  2. Two-column special case: with exactly two columns and exactly one
//     numeric, the numeric column is the value and the other the category,
//     whichever order they appear in. This guarantees two-column
//     numeric/label pairs always chart.
//  3. Otherwise the category is the first categorical column (or the first
//     column overall when none exist) and the value is the first numeric
//     column.
func selectColumns(res tabular.Result, classes map[string]tabular.Class) selection {
	var numeric, categorical []string
	for _, col := range res.Columns {
		if classes[col] == tabular.Numeric {
			numeric = append(numeric, col)
		} else {
			categorical = append(categorical, col)
		}
	}

	sel := selection{
		hasNumeric:     len(numeric) > 0,
		hasCategorical: len(categorical) > 0,
	}

	if len(res.Columns) == 2 && len(numeric) == 1 {
		sel.value = numeric[0]
		if res.Columns[0] == numeric[0] {
			sel.category = res.Columns[1]
		} else {
			sel.category = res.Columns[0]
		}
		return sel
	}

	if len(categorical) > 0 {
		sel.category = categorical[0]
	} else if len(res.Columns) > 0 {
		sel.category = res.Columns[0]
	}
	if len(numeric) > 0 {
		sel.value = numeric[0]
	}
	return sel
}

// shareSeries builds one point per row: label from the category column
// ("unknown" when empty), value from the numeric column (0 when unparseable).
func shareSeries(res tabular.Result, sel selection) []Point {
	points := make([]Point, 0, len(res.Rows))
	for _, row := range res.Rows {
		label := row[sel.category].String()
		if label == "" {
			label = unknownLabel
		}
		value, _ := row[sel.value].Float()
		points = append(points, Point{Label: label, Value: value})
	}
	return points
}

// trendSeries builds one point per row using the category column as the
// position axis. Empty position values, and the no-categorical case, fall
// back to the row's zero-based index.
func trendSeries(res tabular.Result, sel selection) []Point {
	points := make([]Point, 0, len(res.Rows))
	for i, row := range res.Rows {
		position := ""
		if sel.hasCategorical {
			position = row[sel.category].String()
		}
		if position == "" {
			position = strconv.Itoa(i)
		}
		value, _ := row[sel.value].Float()
		points = append(points, Point{Label: position, Value: value})
	}
	return points
}
