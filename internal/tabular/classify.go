package tabular

// Class is the semantic class assigned to a column.
type Class int

const (
	// Categorical is the default class for label-like columns.
	Categorical Class = iota
	// Numeric marks columns whose sampled values all parse as numbers.
	Numeric
)

// String returns the class name.
func (c Class) String() string {
	if c == Numeric {
		return "numeric"
	}
	return "categorical"
}

// classifySampleSize is the number of leading rows inspected per column.
// Classification of large result sets depends only on their head; the window
// must stay fixed so identical inputs always classify identically.
const classifySampleSize = 10

// Classify assigns each column of the result a semantic class by inspecting
// the first classifySampleSize rows in document order. A column is Numeric
// when every sampled non-empty value is a number or a string that fully
// parses as one, and at least one sampled value is non-empty. Columns with no
// rows, or all-empty samples, classify Categorical.
func Classify(res Result) map[string]Class {
	classes := make(map[string]Class, len(res.Columns))

	sample := res.Rows
	if len(sample) > classifySampleSize {
		sample = sample[:classifySampleSize]
	}

	for _, col := range res.Columns {
		classes[col] = classifyColumn(sample, col)
	}
	return classes
}

func classifyColumn(sample []Row, col string) Class {
	sawValue := false
	for _, row := range sample {
		v := row[col]
		if v.IsEmpty() {
			continue
		}
		sawValue = true
		if !isNumericValue(v) {
			return Categorical
		}
	}
	if !sawValue {
		return Categorical
	}
	return Numeric
}

func isNumericValue(v Value) bool {
	switch v.Kind() {
	case KindNumber:
		return true
	case KindString:
		_, ok := v.Float()
		return ok
	default:
		return false
	}
}
