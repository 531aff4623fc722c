package session

import (
	"fmt"
	"sort"
	"sync"

	"dvexport/internal/metadata"
	"dvexport/internal/settings"
)

// PrefsSink receives the updated preference snapshot after every mutation
// worth persisting. The snapshot is a copy; the sink may hold it as long as
// it likes.
type PrefsSink func(*settings.Settings)

// tableState is everything the session knows about one selected table.
type tableState struct {
	table metadata.Table

	attributes []metadata.Attribute
	forms      []metadata.Form
	views      []metadata.View

	selected map[string]bool
	formID   string
	viewID   string

	load    map[ResourceKind]LoadState
	loadErr map[ResourceKind]error
}

func newTableState(table metadata.Table) *tableState {
	return &tableState{
		table:    table,
		selected: make(map[string]bool),
		load: map[ResourceKind]LoadState{
			KindAttributes: NotLoaded,
			KindFormsViews: NotLoaded,
		},
		loadErr: make(map[ResourceKind]error),
	}
}

// Store holds the session's table selection and per-table working state.
// All methods are safe for concurrent use; reconciliation runs under the
// lock, preference notifications run after it.
type Store struct {
	mu     sync.Mutex
	tables map[string]*tableState
	saved  *settings.Settings
	rules  []SelectionRule
	sink   PrefsSink
}

// NewStore builds a store seeded with previously saved preferences. The
// settings value is owned by the store afterwards.
func NewStore(saved *settings.Settings, rules []SelectionRule, sink PrefsSink) *Store {
	if saved == nil {
		saved = &settings.Settings{}
	}
	return &Store{
		tables: make(map[string]*tableState),
		saved:  saved,
		rules:  rules,
		sink:   sink,
	}
}

// AddTables registers tables in the session. Tables already present keep
// their state untouched.
func (s *Store) AddTables(tables []metadata.Table) {
	s.mu.Lock()
	for _, t := range tables {
		if _, ok := s.tables[t.LogicalName]; ok {
			continue
		}
		s.tables[t.LogicalName] = newTableState(t)
	}
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// RemoveTable drops a table and every choice made for it, including choices
// saved on an earlier run for a table not yet in this session. A fetch
// already in flight for the table will find nobody home when it lands.
func (s *Store) RemoveTable(name string) {
	s.mu.Lock()
	delete(s.tables, name)
	s.saved.Forget(name)
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Tables returns the selected table names.
func (s *Store) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the table is part of the session.
func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok
}

// State reports a table's load state for one resource kind. Unknown tables
// read as NotLoaded.
func (s *Store) State(name string, kind ResourceKind) LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.tables[name]
	if !ok {
		return NotLoaded
	}
	return ts.load[kind]
}

// Pending filters names down to tables whose resource still needs fetching:
// NotLoaded or Failed. Loaded tables, whether from a live fetch or a cache
// restore, are left alone.
func (s *Store) Pending(names []string, kind ResourceKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]string, 0, len(names))
	for _, name := range names {
		ts, ok := s.tables[name]
		if !ok {
			continue
		}
		if st := ts.load[kind]; st == NotLoaded || st == Failed {
			pending = append(pending, name)
		}
	}
	return pending
}

// BeginLoad marks tables as Loading for one resource kind and returns the
// names it actually claimed. A table already Loading is skipped so two
// concurrent loads never race on the same key; Loaded and Failed tables are
// claimed again, which is how refresh works.
func (s *Store) BeginLoad(names []string, kind ResourceKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := make([]string, 0, len(names))
	for _, name := range names {
		ts, ok := s.tables[name]
		if !ok || ts.load[kind] == Loading {
			continue
		}
		ts.load[kind] = Loading
		ts.loadErr[kind] = nil
		claimed = append(claimed, name)
	}
	return claimed
}

// ApplyFetchResult lands one table's fetch outcome. A result for a table no
// longer in the session is discarded without comment. An error result moves
// the table to Failed and leaves its previous data alone. A success result
// stores the payload and reconciles the table's choices against it.
func (s *Store) ApplyFetchResult(name string, kind ResourceKind, res Result) {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return
	}

	if res.Err != nil {
		ts.load[kind] = Failed
		ts.loadErr[kind] = res.Err
		s.mu.Unlock()
		return
	}

	switch kind {
	case KindAttributes:
		ts.attributes = res.Attributes
		ts.selected = reconcileAttributes(ts.table, ts.attributes, s.saved.Attributes(name), s.rules)
		s.saved.SetAttributes(name, selectedNames(ts.selected))
	case KindFormsViews:
		ts.forms = res.Forms
		ts.views = res.Views
		ts.formID = chooseForm(ts.forms, s.saved.FormID(name))
		ts.viewID = chooseView(ts.views, s.saved.ViewID(name))
		s.saved.SetFormID(name, ts.formID)
		s.saved.SetViewID(name, ts.viewID)
	}
	ts.load[kind] = Loaded
	ts.loadErr[kind] = nil

	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// ToggleAttribute flips one attribute's selection. Required attributes and
// names the table does not have are left alone.
func (s *Store) ToggleAttribute(name, attr string) {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok || ts.table.IsRequiredAttribute(attr) || !metadata.HasAttribute(ts.attributes, attr) {
		s.mu.Unlock()
		return
	}

	if ts.selected[attr] {
		delete(ts.selected, attr)
	} else {
		ts.selected[attr] = true
	}
	s.saved.SetAttributes(name, selectedNames(ts.selected))
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SelectAllAttributes selects every fetched attribute of a table.
func (s *Store) SelectAllAttributes(name string) {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	for _, attr := range ts.attributes {
		ts.selected[attr.LogicalName] = true
	}
	s.saved.SetAttributes(name, selectedNames(ts.selected))
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// DeselectAllAttributes clears a table's selection down to the required
// attributes.
func (s *Store) DeselectAllAttributes(name string) {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	ts.selected = make(map[string]bool)
	for _, req := range ts.table.RequiredAttributes() {
		ts.selected[req] = true
	}
	s.saved.SetAttributes(name, selectedNames(ts.selected))
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SelectForm picks a form for the table. The form must be one the table
// actually has.
func (s *Store) SelectForm(name, formID string) error {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("table %q is not part of the session", name)
	}
	if metadata.FindForm(ts.forms, formID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("table %q has no form %q", name, formID)
	}
	ts.formID = formID
	s.saved.SetFormID(name, formID)
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// SelectView picks a view for the table. The view must be one the table
// actually has.
func (s *Store) SelectView(name, viewID string) error {
	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("table %q is not part of the session", name)
	}
	if metadata.FindView(ts.views, viewID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("table %q has no view %q", name, viewID)
	}
	ts.viewID = viewID
	s.saved.SetViewID(name, viewID)
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// SelectFormFields selects the attributes a form's markup places on screen,
// on top of whatever is selected already. Returns how many were added.
func (s *Store) SelectFormFields(name, formXML string) int {
	fields := metadata.FormFields(formXML)

	s.mu.Lock()
	ts, ok := s.tables[name]
	if !ok {
		s.mu.Unlock()
		return 0
	}

	added := 0
	for field := range fields {
		if !metadata.HasAttribute(ts.attributes, field) || ts.selected[field] {
			continue
		}
		ts.selected[field] = true
		added++
	}
	if added == 0 {
		s.mu.Unlock()
		return 0
	}
	s.saved.SetAttributes(name, selectedNames(ts.selected))
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return added
}

// RestoreFromCache seeds tables straight from cached metadata, reconciling
// saved choices against it the same way a live fetch would. Tables with an
// empty cached attribute list stay NotLoaded so a later fetch can fill them.
func (s *Store) RestoreFromCache(cache *settings.Cache) {
	s.mu.Lock()
	for name, ts := range s.tables {
		if attrs := cache.TableAttributes[name]; len(attrs) > 0 {
			ts.attributes = attrs
			ts.selected = reconcileAttributes(ts.table, attrs, s.saved.Attributes(name), s.rules)
			s.saved.SetAttributes(name, selectedNames(ts.selected))
			ts.load[KindAttributes] = Loaded
		}

		forms, haveForms := cache.TableForms[name]
		views, haveViews := cache.TableViews[name]
		if haveForms || haveViews {
			ts.forms = forms
			ts.views = views
			ts.formID = chooseForm(forms, s.saved.FormID(name))
			ts.viewID = chooseView(views, s.saved.ViewID(name))
			s.saved.SetFormID(name, ts.formID)
			s.saved.SetViewID(name, ts.viewID)
			ts.load[KindFormsViews] = Loaded
		}
	}
	snap := s.savedSnapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// TableSnapshot is a read-only copy of one table's working state.
type TableSnapshot struct {
	Table      metadata.Table
	Attributes []metadata.Attribute
	Forms      []metadata.Form
	Views      []metadata.View
	Selected   map[string]bool
	FormID     string
	ViewID     string
	States     map[ResourceKind]LoadState
	Errs       map[ResourceKind]error
}

// SelectedAttributes returns the selected attributes in fetched order.
func (ts TableSnapshot) SelectedAttributes() []metadata.Attribute {
	out := make([]metadata.Attribute, 0, len(ts.Selected))
	for _, attr := range ts.Attributes {
		if ts.Selected[attr.LogicalName] {
			out = append(out, attr)
		}
	}
	return out
}

// Form returns the chosen form, or nil.
func (ts TableSnapshot) Form() *metadata.Form {
	return metadata.FindForm(ts.Forms, ts.FormID)
}

// View returns the chosen view, or nil.
func (ts TableSnapshot) View() *metadata.View {
	return metadata.FindView(ts.Views, ts.ViewID)
}

// Snapshot copies the whole session, sorted by table display name.
func (s *Store) Snapshot() []TableSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]TableSnapshot, 0, len(s.tables))
	for _, ts := range s.tables {
		snap := TableSnapshot{
			Table:      ts.table,
			Attributes: append([]metadata.Attribute(nil), ts.attributes...),
			Forms:      append([]metadata.Form(nil), ts.forms...),
			Views:      append([]metadata.View(nil), ts.views...),
			Selected:   make(map[string]bool, len(ts.selected)),
			FormID:     ts.formID,
			ViewID:     ts.viewID,
			States: map[ResourceKind]LoadState{
				KindAttributes: ts.load[KindAttributes],
				KindFormsViews: ts.load[KindFormsViews],
			},
			Errs: map[ResourceKind]error{
				KindAttributes: ts.loadErr[KindAttributes],
				KindFormsViews: ts.loadErr[KindFormsViews],
			},
		}
		for k, v := range ts.selected {
			snap.Selected[k] = v
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Table.DisplayName < snaps[j].Table.DisplayName
	})
	return snaps
}

// TableError pairs a table with the fetch error that failed it.
type TableError struct {
	Table string
	Kind  ResourceKind
	Err   error
}

// FailedTables returns every table resource currently in the Failed state,
// sorted by table name, with the error that put it there.
func (s *Store) FailedTables() []TableError {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []TableError
	for name, ts := range s.tables {
		for _, kind := range []ResourceKind{KindAttributes, KindFormsViews} {
			if ts.load[kind] == Failed {
				failed = append(failed, TableError{Table: name, Kind: kind, Err: ts.loadErr[kind]})
			}
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].Table != failed[j].Table {
			return failed[i].Table < failed[j].Table
		}
		return failed[i].Kind < failed[j].Kind
	})
	return failed
}

// ExportReady reports whether every table's attributes have loaded. An empty
// session is trivially ready; the exporter rejects it on its own.
func (s *Store) ExportReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.tables {
		if ts.load[KindAttributes] != Loaded {
			return false
		}
	}
	return true
}

// savedSnapshotLocked deep-copies the saved preferences for handing to the
// sink outside the lock. Caller must hold s.mu.
func (s *Store) savedSnapshotLocked() *settings.Settings {
	if s.sink == nil {
		return nil
	}

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := &settings.Settings{
		EnvironmentURL:  s.saved.EnvironmentURL,
		LastSolution:    s.saved.LastSolution,
		SelectedTables:  names,
		TableForms:      make(map[string]string, len(s.saved.TableForms)),
		TableViews:      make(map[string]string, len(s.saved.TableViews)),
		TableAttributes: make(map[string][]string, len(s.saved.TableAttributes)),
		OutputFolder:    s.saved.OutputFolder,
		ProjectName:     s.saved.ProjectName,
	}
	for k, v := range s.saved.TableForms {
		snap.TableForms[k] = v
	}
	for k, v := range s.saved.TableViews {
		snap.TableViews[k] = v
	}
	for k, v := range s.saved.TableAttributes {
		snap.TableAttributes[k] = append([]string(nil), v...)
	}
	return snap
}

func (s *Store) notify(snap *settings.Settings) {
	if s.sink != nil && snap != nil {
		s.sink(snap)
	}
}

func selectedNames(selected map[string]bool) []string {
	names := make([]string, 0, len(selected))
	for name, on := range selected {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
