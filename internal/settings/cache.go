package settings

import (
	"errors"
	"log"
	"os"

	"dvexport/internal/metadata"
)

// Cache is the offline copy of catalog metadata fetched on a previous run.
// It is keyed to one environment and solution; results for other scopes are
// never mixed in.
type Cache struct {
	EnvironmentURL string `json:"environment_url"`
	SolutionName   string `json:"solution_name"`

	Tables          []metadata.Table                `json:"tables"`
	TableAttributes map[string][]metadata.Attribute `json:"table_attributes"`
	TableForms      map[string][]metadata.Form      `json:"table_forms"`
	TableViews      map[string][]metadata.View      `json:"table_views"`
}

// IsValidFor reports whether the cache can stand in for a live fetch against
// the given environment and solution. An empty table list means the cache
// captured nothing useful, so it is treated as invalid even when the
// identities line up.
func (c *Cache) IsValidFor(environmentURL, solution string) bool {
	if c == nil {
		return false
	}
	return c.EnvironmentURL == environmentURL &&
		c.SolutionName == solution &&
		len(c.Tables) > 0
}

// Put records one table's fetched metadata, allocating maps on first use.
func (c *Cache) Put(table string, attrs []metadata.Attribute, forms []metadata.Form, views []metadata.View) {
	if c.TableAttributes == nil {
		c.TableAttributes = make(map[string][]metadata.Attribute)
	}
	if c.TableForms == nil {
		c.TableForms = make(map[string][]metadata.Form)
	}
	if c.TableViews == nil {
		c.TableViews = make(map[string][]metadata.View)
	}
	if attrs != nil {
		c.TableAttributes[table] = attrs
	}
	if forms != nil {
		c.TableForms[table] = forms
	}
	if views != nil {
		c.TableViews[table] = views
	}
}

// Forget drops a table's cached metadata.
func (c *Cache) Forget(table string) {
	delete(c.TableAttributes, table)
	delete(c.TableForms, table)
	delete(c.TableViews, table)
}

// LoadCache reads the metadata cache from path. Like LoadSettings, a missing
// or corrupt file yields an empty cache rather than an error.
func LoadCache(path string) *Cache {
	c := &Cache{}
	if err := readJSON(path, c); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: load metadata cache %s: %v", path, err)
		}
		return &Cache{}
	}
	return c
}
