package report

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportal-io/reportal/internal/catalog"
	"github.com/reportal-io/reportal/internal/tabular"
)

type fakeCatalog struct {
	columns map[string][]catalog.ColumnInfo
}

func (f *fakeCatalog) ListTables(_ context.Context) ([]catalog.TableInfo, error) {
	tables := make([]catalog.TableInfo, 0, len(f.columns))
	for name := range f.columns {
		tables = append(tables, catalog.TableInfo{Name: name})
	}
	return tables, nil
}

func (f *fakeCatalog) ListColumns(_ context.Context, table string) ([]catalog.ColumnInfo, error) {
	cols, ok := f.columns[table]
	if !ok {
		return nil, errors.New("no such table")
	}
	return cols, nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	got     []QueryConfig
	result  tabular.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeExecutor) ExecuteStructured(_ context.Context, cfg QueryConfig) (tabular.Result, error) {
	f.mu.Lock()
	f.got = append(f.got, cfg)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func (f *fakeExecutor) calls() []QueryConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]QueryConfig(nil), f.got...)
}

type fakeStore struct {
	mu      sync.Mutex
	creates int
	updates int
	err     error
	defs    map[int64]*Definition
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{defs: make(map[int64]*Definition), nextID: 1}
}

func (f *fakeStore) List(_ context.Context) ([]Summary, error) { return nil, nil }

func (f *fakeStore) Get(_ context.Context, id int64) (*Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.defs[id]
	if !ok {
		return nil, errors.New("report not found")
	}
	copied := *def
	return &copied, nil
}

func (f *fakeStore) Create(_ context.Context, def *Definition) (*Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.err != nil {
		return nil, f.err
	}
	saved := *def
	saved.ID = f.nextID
	f.nextID++
	f.defs[saved.ID] = &saved
	return &saved, nil
}

func (f *fakeStore) Update(_ context.Context, id int64, def *Definition) (*Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.err != nil {
		return nil, f.err
	}
	saved := *def
	saved.ID = id
	f.defs[id] = &saved
	return &saved, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.defs[id]
	delete(f.defs, id)
	return ok, nil
}

func newTestBuilder(t *testing.T) (*Builder, *fakeExecutor, *fakeStore) {
	t.Helper()
	cat := &fakeCatalog{columns: map[string][]catalog.ColumnInfo{
		"orders": {
			{Name: "id", Type: "INTEGER"},
			{Name: "city", Type: "TEXT"},
			{Name: "amount", Type: "REAL"},
		},
	}}
	exec := &fakeExecutor{}
	store := newFakeStore()
	return NewBuilder(cat, exec, store, nil), exec, store
}

func TestSelectTableClearsFieldsAndCachesColumns(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))
	require.Len(t, b.Draft().QueryConfig.Fields, 1)

	require.NoError(t, b.SelectTable(ctx, "orders"))
	assert.Empty(t, b.Draft().QueryConfig.Fields)
	assert.Len(t, b.Columns(), 3)
}

func TestAddFieldValidation(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	ctx := context.Background()

	err := b.AddField("city")
	assert.True(t, IsValidation(err), "no table selected")

	require.NoError(t, b.SelectTable(ctx, "orders"))

	err = b.AddField("nope")
	assert.True(t, IsValidation(err), "unknown column")

	require.NoError(t, b.AddField("city"))
	err = b.AddField("city")
	assert.True(t, IsValidation(err), "duplicate column")
	assert.Len(t, b.Draft().QueryConfig.Fields, 1, "duplicate add is idempotent")
}

func TestRemoveFieldOutOfRangeIsNoOp(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	ctx := context.Background()
	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))

	require.NoError(t, b.RemoveField(5))
	require.NoError(t, b.RemoveField(-1))
	assert.Len(t, b.Draft().QueryConfig.Fields, 1)

	require.NoError(t, b.RemoveField(0))
	assert.Empty(t, b.Draft().QueryConfig.Fields)
}

func TestFilterLifecycle(t *testing.T) {
	b, _, _ := newTestBuilder(t)

	require.NoError(t, b.AddFilter())
	draft := b.Draft()
	require.Len(t, draft.QueryConfig.Filters, 1)
	assert.Equal(t, "=", draft.QueryConfig.Filters[0].Operator)
	assert.False(t, draft.QueryConfig.Filters[0].Active())

	require.NoError(t, b.UpdateFilter(0, "field", "city"))
	require.NoError(t, b.UpdateFilter(0, "value", "NY"))
	assert.True(t, b.Draft().QueryConfig.Filters[0].Active())

	err := b.UpdateFilter(0, "operator", "BOGUS")
	assert.True(t, IsValidation(err))

	// Out-of-range updates and removes are no-ops.
	require.NoError(t, b.UpdateFilter(9, "field", "x"))
	require.NoError(t, b.RemoveFilter(9))

	require.NoError(t, b.RemoveFilter(0))
	assert.Empty(t, b.Draft().QueryConfig.Filters)
}

func TestAddWidgetDefaults(t *testing.T) {
	b, _, _ := newTestBuilder(t)

	tableWidget, err := b.AddWidget(WidgetTable)
	require.NoError(t, err)
	chartWidget, err := b.AddWidget(WidgetChart)
	require.NoError(t, err)

	assert.NotEqual(t, tableWidget.ID, chartWidget.ID)

	layout := b.Draft().LayoutConfig.Layout
	require.Len(t, layout, 2)
	assert.Equal(t, LayoutEntry{ID: tableWidget.ID, X: 0, Y: 0, W: 12, H: 8}, layout[0])
	assert.Equal(t, LayoutEntry{ID: chartWidget.ID, X: 0, Y: 4, W: 6, H: 6}, layout[1])

	_, err = b.AddWidget("gauge")
	assert.True(t, IsValidation(err))
}

func TestRemoveWidgetKeepsPairingAndOrder(t *testing.T) {
	b, _, _ := newTestBuilder(t)

	w1, _ := b.AddWidget(WidgetTable)
	w2, _ := b.AddWidget(WidgetChart)
	w3, _ := b.AddWidget(WidgetText)

	require.NoError(t, b.RemoveWidget(w2.ID))

	draft := b.Draft()
	require.Len(t, draft.LayoutConfig.Widgets, 2)
	require.Len(t, draft.LayoutConfig.Layout, 2)
	assert.Equal(t, w1.ID, draft.LayoutConfig.Widgets[0].ID)
	assert.Equal(t, w3.ID, draft.LayoutConfig.Widgets[1].ID)
	assert.Equal(t, w1.ID, draft.LayoutConfig.Layout[0].ID)
	assert.Equal(t, w3.ID, draft.LayoutConfig.Layout[1].ID)

	// Unknown id is a no-op.
	require.NoError(t, b.RemoveWidget("widget-missing"))
	assert.Len(t, b.Draft().LayoutConfig.Widgets, 2)
}

func TestUpdateLayoutDropsUnknownIDs(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	w, _ := b.AddWidget(WidgetChart)

	require.NoError(t, b.UpdateLayout([]LayoutEntry{
		{ID: w.ID, X: 3, Y: 2, W: 4, H: 4},
		{ID: "widget-unknown", X: 0, Y: 0, W: 1, H: 1},
	}))

	layout := b.Draft().LayoutConfig.Layout
	require.Len(t, layout, 1)
	assert.Equal(t, LayoutEntry{ID: w.ID, X: 3, Y: 2, W: 4, H: 4}, layout[0])
}

func TestPreviewValidation(t *testing.T) {
	b, exec, _ := newTestBuilder(t)
	ctx := context.Background()

	_, err := b.Preview(ctx)
	assert.True(t, IsValidation(err), "no table selected")

	require.NoError(t, b.SelectTable(ctx, "orders"))
	_, err = b.Preview(ctx)
	assert.True(t, IsValidation(err), "no fields selected")

	assert.Empty(t, exec.calls(), "validation failures never reach the executor")
}

func TestPreviewExcludesInactiveFilters(t *testing.T) {
	b, exec, _ := newTestBuilder(t)
	ctx := context.Background()

	exec.result = tabular.NewResult([]string{"city"}, []tabular.Row{{"city": tabular.Str("NY")}})

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))
	require.NoError(t, b.AddFilter()) // stays empty, excluded
	require.NoError(t, b.AddFilter())
	require.NoError(t, b.UpdateFilter(1, "field", "city"))
	require.NoError(t, b.UpdateFilter(1, "value", "NY"))

	res, err := b.Preview(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, res, b.PreviewResult())

	calls := exec.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Filters, 1)
	assert.Equal(t, "city", calls[0].Filters[0].Field)

	// The draft keeps both filters for editing.
	assert.Len(t, b.Draft().QueryConfig.Filters, 2)
}

func TestPreviewFailureLeavesDraftUntouched(t *testing.T) {
	b, exec, _ := newTestBuilder(t)
	ctx := context.Background()
	exec.err = errors.New("query failed")

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))
	before := b.Draft()

	_, err := b.Preview(ctx)
	assert.True(t, IsCollaborator(err))
	assert.Equal(t, before, b.Draft())
	assert.Empty(t, b.PreviewResult().Rows)

	// Retry works once the collaborator recovers.
	exec.err = nil
	_, err = b.Preview(ctx)
	assert.NoError(t, err)
}

func TestSaveRequiresNameBeforeStoreCall(t *testing.T) {
	b, _, store := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))

	_, err := b.Save(ctx)
	assert.True(t, IsValidation(err))
	assert.Zero(t, store.creates, "store must not be called without a name")

	require.NoError(t, b.SetName("Sales by City"))
	saved, err := b.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, 1, store.creates)

	// A second save updates in place.
	_, err = b.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.updates)
}

func TestSaveFailureSurfacesStoreMessage(t *testing.T) {
	b, _, store := newTestBuilder(t)
	ctx := context.Background()
	store.err = errors.New("disk full")

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))
	require.NoError(t, b.SetName("r"))

	_, err := b.Save(ctx)
	require.Error(t, err)
	assert.True(t, IsCollaborator(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestPreviewBusyFlag(t *testing.T) {
	b, exec, _ := newTestBuilder(t)
	ctx := context.Background()

	exec.started = make(chan struct{})
	exec.release = make(chan struct{})
	started := exec.started

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = b.Preview(ctx)
	}()

	<-started
	_, err := b.Preview(ctx)
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = b.Save(ctx)
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(exec.release)
	<-done

	// The busy flag clears once the in-flight call resolves.
	_, err = b.Preview(ctx)
	assert.NoError(t, err)
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	b, exec, _ := newTestBuilder(t)
	ctx := context.Background()

	exec.started = make(chan struct{})
	exec.release = make(chan struct{})
	exec.result = tabular.NewResult([]string{"city"}, []tabular.Row{{"city": tabular.Str("NY")}})
	started := exec.started

	require.NoError(t, b.SelectTable(ctx, "orders"))
	require.NoError(t, b.AddField("city"))

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Preview(ctx)
		errCh <- err
	}()

	<-started
	b.Close()
	close(exec.release)

	assert.ErrorIs(t, <-errCh, ErrSessionClosed)
	assert.Empty(t, b.PreviewResult().Rows, "result of the torn-down request is discarded")
}

func TestClosedSessionRefusesMutations(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	b.Close()

	assert.ErrorIs(t, b.AddField("city"), ErrSessionClosed)
	assert.ErrorIs(t, b.AddFilter(), ErrSessionClosed)
	_, err := b.AddWidget(WidgetTable)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestLoadPopulatesDraft(t *testing.T) {
	b, _, store := newTestBuilder(t)
	ctx := context.Background()

	store.defs[7] = &Definition{
		ID:         7,
		Name:       "Existing",
		DataSource: DefaultDataSource,
		QueryConfig: QueryConfig{
			Table:  "orders",
			Fields: []Field{{Table: "orders", Field: "city", Alias: "city"}},
		},
	}

	require.NoError(t, b.Load(ctx, 7))
	draft := b.Draft()
	assert.Equal(t, int64(7), draft.ID)
	assert.Equal(t, "orders", draft.QueryConfig.Table)
	assert.Len(t, b.Columns(), 3, "catalog columns fetched for the loaded table")

	err := b.Load(ctx, 99)
	assert.True(t, IsCollaborator(err))
}

func TestApplyDispatch(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.Apply(ctx, Action{Type: ActionSelectTable, Table: "orders"}))
	require.NoError(t, b.Apply(ctx, Action{Type: ActionAddField, Column: "amount"}))
	require.NoError(t, b.Apply(ctx, Action{Type: ActionSetName, Value: "My Report"}))

	draft := b.Draft()
	assert.Equal(t, "orders", draft.QueryConfig.Table)
	assert.Equal(t, "My Report", draft.Name)

	err := b.Apply(ctx, Action{Type: "explode"})
	assert.True(t, IsValidation(err))
}

func TestLoadCatalog(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	ctx := context.Background()

	tables, err := b.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
	assert.Empty(t, b.Columns(), "no table selected, nothing to prefetch")

	b.draft.QueryConfig.Table = "orders"
	_, err = b.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Columns(), 3, "columns refreshed for the selected table")
}
