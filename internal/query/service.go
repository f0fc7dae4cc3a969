// Package query executes natural-language and structured report queries
// against a data source and shapes the response envelope.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/reportal-io/reportal/internal/report"
	"github.com/reportal-io/reportal/internal/source"
	"github.com/reportal-io/reportal/internal/tabular"
)

// Translator converts a natural-language question into a SQL statement.
type Translator interface {
	Translate(ctx context.Context, question string) (string, error)
}

// Interpreter summarizes a result; a failure yields "".
type Interpreter interface {
	Interpret(ctx context.Context, question string, res tabular.Result) string
}

// Response is the wire envelope for query execution. Failure is a value, not
// an error: Success is false and Message carries the reason.
type Response struct {
	Success        bool          `json:"success"`
	SQL            string        `json:"sql,omitempty"`
	Columns        []string      `json:"columns"`
	Rows           []tabular.Row `json:"data"`
	Message        string        `json:"message,omitempty"`
	Interpretation string        `json:"interpretation,omitempty"`
}

// Service executes queries. The interpreter is optional.
type Service struct {
	src         source.Source
	translator  Translator
	interpreter Interpreter
	maxRows     int
	logger      *slog.Logger
}

// New creates a query service. maxRows caps the rows returned in a response;
// zero or negative means the default cap.
func New(src source.Source, tr Translator, in Interpreter, maxRows int, logger *slog.Logger) *Service {
	if maxRows <= 0 {
		maxRows = source.DefaultMaxRows
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{src: src, translator: tr, interpreter: in, maxRows: maxRows, logger: logger}
}

// Execute answers a natural-language question. Translation or execution
// failures are returned in the envelope; showSQL controls whether the
// generated statement is echoed back.
func (s *Service) Execute(ctx context.Context, question string, showSQL bool) Response {
	sql, err := s.translator.Translate(ctx, question)
	if err != nil {
		return failure(err)
	}

	res, err := s.src.Query(ctx, sql)
	if err != nil {
		return failure(err)
	}
	if len(res.Rows) > s.maxRows {
		res.Rows = res.Rows[:s.maxRows]
	}

	resp := Response{
		Success: true,
		Columns: res.Columns,
		Rows:    res.Rows,
		Message: "query succeeded",
	}
	if showSQL {
		resp.SQL = sql
	}
	if s.interpreter != nil {
		resp.Interpretation = s.interpreter.Interpret(ctx, question, res)
	}
	return resp
}

// ExecuteStructured runs the declarative query of a report draft. It
// implements the executor contract the report builder previews against.
func (s *Service) ExecuteStructured(ctx context.Context, cfg report.QueryConfig) (tabular.Result, error) {
	sql, args, err := BuildSQL(cfg)
	if err != nil {
		return tabular.Result{}, err
	}
	s.logger.Debug("executing report query", "sql", sql)

	res, err := s.src.Query(ctx, sql, args...)
	if err != nil {
		return tabular.Result{}, err
	}
	if len(res.Rows) > s.maxRows {
		res.Rows = res.Rows[:s.maxRows]
	}
	return res, nil
}

// ExecuteReport runs a stored definition's query and wraps it in the
// response envelope, echoing the generated statement.
func (s *Service) ExecuteReport(ctx context.Context, cfg report.QueryConfig) Response {
	sql, args, err := BuildSQL(cfg)
	if err != nil {
		return failure(err)
	}
	res, err := s.src.Query(ctx, sql, args...)
	if err != nil {
		return failure(err)
	}
	if len(res.Rows) > s.maxRows {
		res.Rows = res.Rows[:s.maxRows]
	}
	return Response{Success: true, SQL: sql, Columns: res.Columns, Rows: res.Rows}
}

func failure(err error) Response {
	return Response{Success: false, Columns: []string{}, Rows: []tabular.Row{}, Message: err.Error()}
}

// identifier constrains every name interpolated into generated SQL. Values
// never pass through here; they are always bound as parameters.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuildSQL assembles a parameterized SELECT from a query config. Identifiers
// are validated against a strict pattern; filter values become "?" bindings.
// Filters missing a field or value are skipped.
func BuildSQL(cfg report.QueryConfig) (string, []any, error) {
	if cfg.Table == "" || len(cfg.Fields) == 0 {
		return "", nil, fmt.Errorf("query requires a table and at least one field")
	}
	if !identifier.MatchString(cfg.Table) {
		return "", nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	selects := make([]string, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if !identifier.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid field name %q", f.Field)
		}
		expr := f.Field
		if f.Table != "" {
			if !identifier.MatchString(f.Table) {
				return "", nil, fmt.Errorf("invalid table name %q", f.Table)
			}
			expr = f.Table + "." + f.Field
		}
		alias := f.Alias
		if alias == "" {
			alias = f.Field
		}
		if !identifier.MatchString(alias) {
			return "", nil, fmt.Errorf("invalid field alias %q", alias)
		}
		selects = append(selects, expr+" AS "+alias)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selects, ", "), cfg.Table)

	var args []any
	var conditions []string
	for _, f := range cfg.Filters {
		if !f.Active() {
			continue
		}
		if !identifier.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		if !report.ValidOperator(f.Operator) {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
		}
		conditions = append(conditions, fmt.Sprintf("%s %s ?", f.Field, f.Operator))
		args = append(args, f.Value)
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}

	if len(cfg.GroupBy) > 0 {
		for _, g := range cfg.GroupBy {
			if !identifier.MatchString(g) {
				return "", nil, fmt.Errorf("invalid group by column %q", g)
			}
		}
		b.WriteString(" GROUP BY " + strings.Join(cfg.GroupBy, ", "))
	}

	if len(cfg.OrderBy) > 0 {
		terms := make([]string, 0, len(cfg.OrderBy))
		for _, o := range cfg.OrderBy {
			if !identifier.MatchString(o.Field) {
				return "", nil, fmt.Errorf("invalid order by column %q", o.Field)
			}
			dir := strings.ToUpper(o.Direction)
			switch dir {
			case "":
				dir = "ASC"
			case "ASC", "DESC":
			default:
				return "", nil, fmt.Errorf("invalid sort direction %q", o.Direction)
			}
			terms = append(terms, o.Field+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	return b.String(), args, nil
}
