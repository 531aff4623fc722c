package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Settings holds the user's saved preferences: the environment and solution
// last worked on, which tables were picked, and the per-table form, view and
// attribute choices. A zero value is a valid empty preference set.
type Settings struct {
	EnvironmentURL  string              `json:"environment_url"`
	LastSolution    string              `json:"last_solution"`
	SelectedTables  []string            `json:"selected_tables"`
	TableForms      map[string]string   `json:"table_forms"`
	TableViews      map[string]string   `json:"table_views"`
	TableAttributes map[string][]string `json:"table_attributes"`
	OutputFolder    string              `json:"output_folder"`
	ProjectName     string              `json:"project_name"`
}

// FormID returns the saved form choice for a table, or "" when none.
func (s *Settings) FormID(table string) string {
	return s.TableForms[table]
}

// ViewID returns the saved view choice for a table, or "" when none.
func (s *Settings) ViewID(table string) string {
	return s.TableViews[table]
}

// Attributes returns the saved attribute selection for a table. A nil or
// empty slice means no selection was ever saved.
func (s *Settings) Attributes(table string) []string {
	return s.TableAttributes[table]
}

// SetFormID records a form choice, allocating the map on first use.
func (s *Settings) SetFormID(table, formID string) {
	if s.TableForms == nil {
		s.TableForms = make(map[string]string)
	}
	s.TableForms[table] = formID
}

// SetViewID records a view choice, allocating the map on first use.
func (s *Settings) SetViewID(table, viewID string) {
	if s.TableViews == nil {
		s.TableViews = make(map[string]string)
	}
	s.TableViews[table] = viewID
}

// SetAttributes records an attribute selection, allocating the map on first
// use.
func (s *Settings) SetAttributes(table string, attrs []string) {
	if s.TableAttributes == nil {
		s.TableAttributes = make(map[string][]string)
	}
	s.TableAttributes[table] = attrs
}

// Forget drops every saved choice for a table.
func (s *Settings) Forget(table string) {
	delete(s.TableForms, table)
	delete(s.TableViews, table)
	delete(s.TableAttributes, table)
}

// LoadSettings reads saved preferences from path. A missing file yields the
// zero value without a warning; a corrupt file yields the zero value with
// one. Loading never fails the caller.
func LoadSettings(path string) *Settings {
	s := &Settings{}
	if err := readJSON(path, s); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: load settings %s: %v", path, err)
		}
		return &Settings{}
	}
	return s
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a truncated record behind.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
