// Package report defines the persisted report configuration model and the
// stateful builder session that edits a draft definition.
package report

// DefaultDataSource is the identifier of the built-in data source. The field
// stays open for additional sources configured under internal/source.
const DefaultDataSource = "default"

// Widget types.
const (
	WidgetTable = "table"
	WidgetChart = "chart"
	WidgetText  = "text"
)

// Filter operators form a fixed set; anything else is refused before SQL
// assembly.
var filterOperators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {}, "LIKE": {},
}

// ValidOperator reports whether op is one of the supported filter operators.
func ValidOperator(op string) bool {
	_, ok := filterOperators[op]
	return ok
}

// Field is one selected column of the report query.
type Field struct {
	Table string `json:"table"`
	Field string `json:"field"`
	Alias string `json:"alias"`
}

// Filter is one predicate of the report query. Filters with an empty field or
// value are kept in the draft for editing but excluded from execution.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Active reports whether the filter participates in query execution.
func (f Filter) Active() bool {
	return f.Field != "" && f.Value != ""
}

// OrderTerm is one ORDER BY term of the report query.
type OrderTerm struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

// QueryConfig is the declarative query portion of a report definition.
// GroupBy and OrderBy are optional and absent from older stored definitions.
type QueryConfig struct {
	Table   string      `json:"table"`
	Fields  []Field     `json:"fields"`
	Filters []Filter    `json:"filters"`
	GroupBy []string    `json:"group_by,omitempty"`
	OrderBy []OrderTerm `json:"order_by,omitempty"`
}

// LayoutEntry is one widget placement on the report grid. The "i" key matches
// the id of exactly one widget.
type LayoutEntry struct {
	ID string `json:"i"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	W  int    `json:"w"`
	H  int    `json:"h"`
}

// Widget is a placed visual element within the report layout.
type Widget struct {
	ID    string `json:"i"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// LayoutConfig holds the widget list and their grid placements. Every layout
// entry references exactly one widget by id.
type LayoutConfig struct {
	Layout  []LayoutEntry `json:"layout"`
	Widgets []Widget      `json:"widgets"`
}

// Definition is a persisted report configuration. The JSON field names are
// part of the stored format and must not change.
type Definition struct {
	ID           int64        `json:"id,omitempty"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	DataSource   string       `json:"data_source"`
	LayoutConfig LayoutConfig `json:"layout_config"`
	QueryConfig  QueryConfig  `json:"query_config"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
}

// Summary is the list-view projection of a definition, without the config
// payloads.
type Summary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DataSource  string `json:"data_source"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// defaultWidgetTitle returns the display title for a widget kind.
func defaultWidgetTitle(kind string) string {
	switch kind {
	case WidgetTable:
		return "Data Table"
	case WidgetChart:
		return "Chart"
	default:
		return "Text"
	}
}
