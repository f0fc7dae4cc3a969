package report

import "context"

// Action types accepted by Apply. Each maps to one builder mutation.
const (
	ActionSelectTable  = "select_table"
	ActionAddField     = "add_field"
	ActionRemoveField  = "remove_field"
	ActionAddFilter    = "add_filter"
	ActionUpdateFilter = "update_filter"
	ActionRemoveFilter = "remove_filter"
	ActionAddWidget    = "add_widget"
	ActionRemoveWidget = "remove_widget"
	ActionUpdateLayout = "update_layout"
	ActionSetName      = "set_name"
	ActionSetDesc      = "set_description"
)

// Action is one builder mutation in wire form. Only the fields relevant to
// the type need to be set.
type Action struct {
	Type   string        `json:"type"`
	Table  string        `json:"table,omitempty"`
	Column string        `json:"column,omitempty"`
	Index  int           `json:"index,omitempty"`
	Key    string        `json:"key,omitempty"`
	Value  string        `json:"value,omitempty"`
	Kind   string        `json:"kind,omitempty"`
	ID     string        `json:"id,omitempty"`
	Layout []LayoutEntry `json:"layout,omitempty"`
}

// Apply dispatches an action to the matching builder mutation.
func (b *Builder) Apply(ctx context.Context, a Action) error {
	switch a.Type {
	case ActionSelectTable:
		return b.SelectTable(ctx, a.Table)
	case ActionAddField:
		return b.AddField(a.Column)
	case ActionRemoveField:
		return b.RemoveField(a.Index)
	case ActionAddFilter:
		return b.AddFilter()
	case ActionUpdateFilter:
		return b.UpdateFilter(a.Index, a.Key, a.Value)
	case ActionRemoveFilter:
		return b.RemoveFilter(a.Index)
	case ActionAddWidget:
		_, err := b.AddWidget(a.Kind)
		return err
	case ActionRemoveWidget:
		return b.RemoveWidget(a.ID)
	case ActionUpdateLayout:
		return b.UpdateLayout(a.Layout)
	case ActionSetName:
		return b.SetName(a.Value)
	case ActionSetDesc:
		return b.SetDescription(a.Value)
	default:
		return validationf("unknown action type %s", a.Type)
	}
}
