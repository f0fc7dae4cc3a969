package report

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/reportal-io/reportal/internal/catalog"
	"github.com/reportal-io/reportal/internal/tabular"
)

// CatalogProvider lists the tables and columns available to the builder.
type CatalogProvider interface {
	ListTables(ctx context.Context) ([]catalog.TableInfo, error)
	ListColumns(ctx context.Context, table string) ([]catalog.ColumnInfo, error)
}

// QueryExecutor runs the structured query of a draft for preview.
type QueryExecutor interface {
	ExecuteStructured(ctx context.Context, cfg QueryConfig) (tabular.Result, error)
}

// Builder is one editing session over a draft definition. The draft is owned
// exclusively by the session until Save; the store owns the durable copy.
//
// Mutations are synchronous and cheap. Preview and Save call collaborators
// while unlocked and hold a busy flag so that at most one of them is in
// flight per session; a second request is refused, not queued. A failed call
// leaves the draft untouched so it can simply be retried.
type Builder struct {
	mu     sync.Mutex
	draft  Definition
	busy   bool
	closed bool

	// columns caches the catalog per selected table so that AddField can
	// validate without another round trip.
	columns map[string][]catalog.ColumnInfo

	preview tabular.Result

	catalog  CatalogProvider
	executor QueryExecutor
	store    Store
	logger   *slog.Logger
}

// NewBuilder creates an empty draft session.
func NewBuilder(cat CatalogProvider, exec QueryExecutor, store Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		draft: Definition{
			DataSource:   DefaultDataSource,
			LayoutConfig: LayoutConfig{Layout: []LayoutEntry{}, Widgets: []Widget{}},
			QueryConfig:  QueryConfig{Fields: []Field{}, Filters: []Filter{}},
		},
		columns:  make(map[string][]catalog.ColumnInfo),
		catalog:  cat,
		executor: exec,
		store:    store,
		logger:   logger,
	}
}

// Draft returns a copy of the current draft.
func (b *Builder) Draft() Definition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneDefinition(b.draft)
}

// PreviewResult returns the rows of the most recent successful preview.
func (b *Builder) PreviewResult() tabular.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview
}

// Columns returns the cached catalog columns of the selected table.
func (b *Builder) Columns() []catalog.ColumnInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.columns[b.draft.QueryConfig.Table]
}

// Load replaces the draft with a stored definition for editing.
func (b *Builder) Load(ctx context.Context, id int64) error {
	def, err := b.store.Get(ctx, id)
	if err != nil {
		return collaborator(err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrSessionClosed
	}
	b.draft = cloneDefinition(*def)
	b.preview = tabular.Result{}
	b.mu.Unlock()

	if def.QueryConfig.Table != "" {
		b.fetchColumns(ctx, def.QueryConfig.Table)
	}
	return nil
}

// LoadCatalog lists the available tables and refreshes the column cache for
// the selected table, if any. Called by the hosting surface at session start.
func (b *Builder) LoadCatalog(ctx context.Context) ([]catalog.TableInfo, error) {
	tables, err := b.catalog.ListTables(ctx)
	if err != nil {
		return nil, collaborator(err)
	}

	b.mu.Lock()
	table := b.draft.QueryConfig.Table
	b.mu.Unlock()
	if table != "" {
		b.fetchColumns(ctx, table)
	}
	return tables, nil
}

// SelectTable switches the draft to a new table. Selected fields are cleared;
// filters, widgets, and layout are kept. The column catalog for the table is
// fetched eagerly so field edits can be validated locally.
func (b *Builder) SelectTable(ctx context.Context, table string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrSessionClosed
	}
	b.draft.QueryConfig.Table = table
	b.draft.QueryConfig.Fields = []Field{}
	b.mu.Unlock()

	b.fetchColumns(ctx, table)
	return nil
}

// fetchColumns loads and caches the column catalog for a table. Failures are
// logged and leave the cache entry absent; AddField then refuses the table.
func (b *Builder) fetchColumns(ctx context.Context, table string) {
	cols, err := b.catalog.ListColumns(ctx, table)
	if err != nil {
		b.logger.Warn("failed to load columns", "table", table, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.columns[table] = cols
}

// AddField appends a column to the selected fields. Duplicate columns and
// columns unknown to the table catalog are refused.
func (b *Builder) AddField(column string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}

	table := b.draft.QueryConfig.Table
	if table == "" {
		return validationf("select a table before adding fields")
	}
	cols := b.columns[table]
	if len(cols) == 0 {
		return validationf("table %s has no available columns", table)
	}
	known := false
	for _, col := range cols {
		if col.Name == column {
			known = true
			break
		}
	}
	if !known {
		return validationf("column %s does not exist on table %s", column, table)
	}
	for _, f := range b.draft.QueryConfig.Fields {
		if f.Field == column {
			return validationf("field %s is already selected", column)
		}
	}

	b.draft.QueryConfig.Fields = append(b.draft.QueryConfig.Fields, Field{
		Table: table,
		Field: column,
		Alias: column,
	})
	return nil
}

// RemoveField removes the field at index. Out-of-range indexes are no-ops.
func (b *Builder) RemoveField(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	fields := b.draft.QueryConfig.Fields
	if index < 0 || index >= len(fields) {
		return nil
	}
	b.draft.QueryConfig.Fields = append(fields[:index], fields[index+1:]...)
	return nil
}

// AddFilter appends an empty filter row for the user to fill in.
func (b *Builder) AddFilter() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	b.draft.QueryConfig.Filters = append(b.draft.QueryConfig.Filters, Filter{Operator: "="})
	return nil
}

// UpdateFilter mutates one attribute of the filter at index. Unknown keys and
// out-of-range indexes are no-ops; an invalid operator is refused.
func (b *Builder) UpdateFilter(index int, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	filters := b.draft.QueryConfig.Filters
	if index < 0 || index >= len(filters) {
		return nil
	}
	switch key {
	case "field":
		filters[index].Field = value
	case "operator":
		if !ValidOperator(value) {
			return validationf("unsupported filter operator %s", value)
		}
		filters[index].Operator = value
	case "value":
		filters[index].Value = value
	}
	return nil
}

// RemoveFilter removes the filter at index. Out-of-range indexes are no-ops.
func (b *Builder) RemoveFilter(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	filters := b.draft.QueryConfig.Filters
	if index < 0 || index >= len(filters) {
		return nil
	}
	b.draft.QueryConfig.Filters = append(filters[:index], filters[index+1:]...)
	return nil
}

// AddWidget appends a widget of the given kind with a fresh id and a layout
// entry placed below all existing entries. Tables get the full grid width.
func (b *Builder) AddWidget(kind string) (Widget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Widget{}, ErrSessionClosed
	}
	switch kind {
	case WidgetTable, WidgetChart, WidgetText:
	default:
		return Widget{}, validationf("unsupported widget type %s", kind)
	}

	w, h := 6, 6
	if kind == WidgetTable {
		w, h = 12, 8
	}
	widget := Widget{
		ID:    "widget-" + uuid.NewString(),
		Type:  kind,
		Title: defaultWidgetTitle(kind),
	}
	entry := LayoutEntry{
		ID: widget.ID,
		X:  0,
		Y:  4 * len(b.draft.LayoutConfig.Layout),
		W:  w,
		H:  h,
	}
	b.draft.LayoutConfig.Widgets = append(b.draft.LayoutConfig.Widgets, widget)
	b.draft.LayoutConfig.Layout = append(b.draft.LayoutConfig.Layout, entry)
	return widget, nil
}

// RemoveWidget removes a widget and its layout entry. The two collections
// stay referentially consistent; unknown ids are no-ops.
func (b *Builder) RemoveWidget(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}

	widgets := b.draft.LayoutConfig.Widgets
	for i, w := range widgets {
		if w.ID == id {
			b.draft.LayoutConfig.Widgets = append(widgets[:i], widgets[i+1:]...)
			break
		}
	}
	layout := b.draft.LayoutConfig.Layout
	for i, e := range layout {
		if e.ID == id {
			b.draft.LayoutConfig.Layout = append(layout[:i], layout[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateLayout replaces the layout wholesale. Entries referencing unknown
// widget ids are dropped so the referential invariant holds.
func (b *Builder) UpdateLayout(entries []LayoutEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}

	known := make(map[string]struct{}, len(b.draft.LayoutConfig.Widgets))
	for _, w := range b.draft.LayoutConfig.Widgets {
		known[w.ID] = struct{}{}
	}
	next := make([]LayoutEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := known[e.ID]; !ok {
			b.logger.Warn("dropping layout entry for unknown widget", "id", e.ID)
			continue
		}
		next = append(next, e)
	}
	b.draft.LayoutConfig.Layout = next
	return nil
}

// Preview executes the draft query and stores the result for rendering.
// Filters missing a field or value stay in the draft but are excluded from
// execution. Only one preview or save may be in flight at a time.
func (b *Builder) Preview(ctx context.Context) (tabular.Result, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return tabular.Result{}, ErrSessionClosed
	}
	if b.busy {
		b.mu.Unlock()
		return tabular.Result{}, ErrSessionBusy
	}
	if err := b.validateQuery(); err != nil {
		b.mu.Unlock()
		return tabular.Result{}, err
	}
	b.busy = true
	cfg := executableQuery(b.draft.QueryConfig)
	b.mu.Unlock()

	res, err := b.executor.ExecuteStructured(ctx, cfg)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if b.closed {
		// Session was torn down while the query ran; discard the result.
		return tabular.Result{}, ErrSessionClosed
	}
	if err != nil {
		return tabular.Result{}, collaborator(err)
	}
	b.preview = res
	return res, nil
}

// Save persists the draft, creating or updating depending on whether it has
// an id. The name requirement is checked before the store is touched.
func (b *Builder) Save(ctx context.Context) (*Definition, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if b.busy {
		b.mu.Unlock()
		return nil, ErrSessionBusy
	}
	if b.draft.Name == "" {
		b.mu.Unlock()
		return nil, validationf("report name is required")
	}
	if err := b.validateQuery(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.busy = true
	def := cloneDefinition(b.draft)
	b.mu.Unlock()

	var saved *Definition
	var err error
	if def.ID == 0 {
		saved, err = b.store.Create(ctx, &def)
	} else {
		saved, err = b.store.Update(ctx, def.ID, &def)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if b.closed {
		return nil, ErrSessionClosed
	}
	if err != nil {
		return nil, collaborator(err)
	}
	b.draft = cloneDefinition(*saved)
	return saved, nil
}

// SetName sets the draft name.
func (b *Builder) SetName(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	b.draft.Name = name
	return nil
}

// SetDescription sets the draft description.
func (b *Builder) SetDescription(desc string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSessionClosed
	}
	b.draft.Description = desc
	return nil
}

// Close tears the session down. In-flight preview or save results are
// discarded on return instead of mutating the disposed state.
func (b *Builder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// validateQuery checks the table/fields precondition shared by preview and
// save. Caller holds the lock.
func (b *Builder) validateQuery() error {
	if b.draft.QueryConfig.Table == "" {
		return validationf("select a table before running the report")
	}
	if len(b.draft.QueryConfig.Fields) == 0 {
		return validationf("select at least one field before running the report")
	}
	return nil
}

// executableQuery restricts the config to filters that are fully specified.
func executableQuery(cfg QueryConfig) QueryConfig {
	out := QueryConfig{
		Table:   cfg.Table,
		Fields:  append([]Field(nil), cfg.Fields...),
		GroupBy: append([]string(nil), cfg.GroupBy...),
		OrderBy: append([]OrderTerm(nil), cfg.OrderBy...),
	}
	for _, f := range cfg.Filters {
		if f.Active() {
			out.Filters = append(out.Filters, f)
		}
	}
	return out
}

// cloneDefinition deep-copies a definition so drafts and snapshots never
// share slices.
func cloneDefinition(def Definition) Definition {
	out := def
	out.LayoutConfig.Layout = append([]LayoutEntry(nil), def.LayoutConfig.Layout...)
	out.LayoutConfig.Widgets = append([]Widget(nil), def.LayoutConfig.Widgets...)
	out.QueryConfig.Fields = append([]Field(nil), def.QueryConfig.Fields...)
	out.QueryConfig.Filters = append([]Filter(nil), def.QueryConfig.Filters...)
	out.QueryConfig.GroupBy = append([]string(nil), def.QueryConfig.GroupBy...)
	out.QueryConfig.OrderBy = append([]OrderTerm(nil), def.QueryConfig.OrderBy...)
	return out
}
