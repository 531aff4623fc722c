package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"dvexport/internal/auth"
	"dvexport/internal/metadata"
)

const apiVersion = "v9.2"

// Dataverse caps the length of a $filter clause, so entity definitions are
// fetched in id batches.
const entityBatchSize = 50

// WebAPIClient talks to the Dataverse Web API (OData v4).
type WebAPIClient struct {
	apiURL string
	tokens auth.TokenSource
	http   *http.Client
}

var _ Client = (*WebAPIClient)(nil)

// NewWebAPIClient builds a client for the given environment, e.g.
// "https://yourorg.crm.dynamics.com". Every call carries the fixed timeout;
// the client never retries.
func NewWebAPIClient(environmentURL string, tokens auth.TokenSource, timeout time.Duration) *WebAPIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebAPIClient{
		apiURL: strings.TrimRight(environmentURL, "/") + "/api/data/" + apiVersion,
		tokens: tokens,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *WebAPIClient) get(ctx context.Context, resource string, query url.Values, out any) error {
	u := c.apiURL + "/" + resource
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "odata.include-annotations=*")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

// odataQuote escapes single quotes for use inside an OData string literal.
func odataQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

type localizedLabel struct {
	UserLocalizedLabel *struct {
		Label string `json:"Label"`
	} `json:"UserLocalizedLabel"`
}

func (l localizedLabel) labelOr(fallback string) string {
	if l.UserLocalizedLabel != nil && l.UserLocalizedLabel.Label != "" {
		return l.UserLocalizedLabel.Label
	}
	return fallback
}

type solutionRow struct {
	SolutionID   string `json:"solutionid"`
	UniqueName   string `json:"uniquename"`
	FriendlyName string `json:"friendlyname"`
	Version      string `json:"version"`
	IsManaged    bool   `json:"ismanaged"`
}

// ListSolutions returns the visible unmanaged solutions, ordered by friendly
// name.
func (c *WebAPIClient) ListSolutions(ctx context.Context) ([]Solution, error) {
	q := url.Values{}
	q.Set("$select", "solutionid,uniquename,friendlyname,version,ismanaged")
	q.Set("$filter", "isvisible eq true and ismanaged eq false")
	q.Set("$orderby", "friendlyname")

	var env listEnvelope[solutionRow]
	if err := c.get(ctx, "solutions", q, &env); err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}

	solutions := make([]Solution, 0, len(env.Value))
	for _, row := range env.Value {
		solutions = append(solutions, Solution{
			ID:           row.SolutionID,
			UniqueName:   row.UniqueName,
			FriendlyName: row.FriendlyName,
			Version:      row.Version,
			IsManaged:    row.IsManaged,
		})
	}
	return solutions, nil
}

type entityRow struct {
	LogicalName          string         `json:"LogicalName"`
	SchemaName           string         `json:"SchemaName"`
	DisplayName          localizedLabel `json:"DisplayName"`
	ObjectTypeCode       int            `json:"ObjectTypeCode"`
	PrimaryIdAttribute   string         `json:"PrimaryIdAttribute"`
	PrimaryNameAttribute string         `json:"PrimaryNameAttribute"`
	IsActivity           bool           `json:"IsActivity"`
	IsIntersect          bool           `json:"IsIntersect"`
	MetadataId           string         `json:"MetadataId"`
}

// ListSolutionTables resolves the solution, lists its table components and
// batch-fetches the entity definitions. Activity and intersect tables are
// skipped. Result is sorted by display name. ErrNotFound when the solution
// does not exist.
func (c *WebAPIClient) ListSolutionTables(ctx context.Context, solution string) ([]metadata.Table, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("uniquename eq '%s'", odataQuote(solution)))
	q.Set("$select", "solutionid")

	var solutions listEnvelope[solutionRow]
	if err := c.get(ctx, "solutions", q, &solutions); err != nil {
		return nil, fmt.Errorf("resolve solution %q: %w", solution, err)
	}
	if len(solutions.Value) == 0 {
		return nil, fmt.Errorf("solution %q: %w", solution, ErrNotFound)
	}
	solutionID := solutions.Value[0].SolutionID

	// Entity components carry componenttype 1.
	q = url.Values{}
	q.Set("$filter", fmt.Sprintf("_solutionid_value eq %s and componenttype eq 1", solutionID))
	q.Set("$select", "objectid")

	var components listEnvelope[struct {
		ObjectID string `json:"objectid"`
	}]
	if err := c.get(ctx, "solutioncomponents", q, &components); err != nil {
		return nil, fmt.Errorf("list solution components: %w", err)
	}
	if len(components.Value) == 0 {
		return []metadata.Table{}, nil
	}

	ids := make([]string, 0, len(components.Value))
	for _, comp := range components.Value {
		ids = append(ids, comp.ObjectID)
	}

	var tables []metadata.Table
	for start := 0; start < len(ids); start += entityBatchSize {
		end := start + entityBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := c.listEntityDefinitions(ctx, ids[start:end])
		if err != nil {
			// One bad batch does not fail the listing; the remaining tables
			// are still worth returning.
			log.Printf("WARN: fetch entity definition batch: %v", err)
			continue
		}
		tables = append(tables, batch...)
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].DisplayName < tables[j].DisplayName
	})
	return tables, nil
}

func (c *WebAPIClient) listEntityDefinitions(ctx context.Context, ids []string) ([]metadata.Table, error) {
	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = "MetadataId eq " + id
	}

	q := url.Values{}
	q.Set("$filter", "("+strings.Join(clauses, " or ")+")")
	q.Set("$select", "LogicalName,SchemaName,DisplayName,ObjectTypeCode,PrimaryIdAttribute,PrimaryNameAttribute,IsActivity,IsIntersect,MetadataId")

	var env listEnvelope[entityRow]
	if err := c.get(ctx, "EntityDefinitions", q, &env); err != nil {
		return nil, err
	}

	tables := make([]metadata.Table, 0, len(env.Value))
	for _, row := range env.Value {
		if row.IsActivity || row.IsIntersect {
			continue
		}
		tables = append(tables, metadata.Table{
			LogicalName:          row.LogicalName,
			DisplayName:          row.DisplayName.labelOr(row.LogicalName),
			SchemaName:           row.SchemaName,
			ObjectTypeCode:       row.ObjectTypeCode,
			PrimaryIDAttribute:   row.PrimaryIdAttribute,
			PrimaryNameAttribute: row.PrimaryNameAttribute,
			MetadataID:           row.MetadataId,
		})
	}
	return tables, nil
}

type attributeRow struct {
	LogicalName    string         `json:"LogicalName"`
	SchemaName     string         `json:"SchemaName"`
	DisplayName    localizedLabel `json:"DisplayName"`
	AttributeType  string         `json:"AttributeType"`
	IsValidForRead bool           `json:"IsValidForRead"`
	IsCustom       bool           `json:"IsCustomAttribute"`
	RequiredLevel  struct {
		Value string `json:"Value"`
	} `json:"RequiredLevel"`
}

// ListAttributes returns the table's readable attributes, sorted by display
// name.
func (c *WebAPIClient) ListAttributes(ctx context.Context, table string) ([]metadata.Attribute, error) {
	resource := fmt.Sprintf("EntityDefinitions(LogicalName='%s')/Attributes", odataQuote(table))

	q := url.Values{}
	q.Set("$select", "LogicalName,SchemaName,DisplayName,AttributeType,IsValidForRead,IsCustomAttribute,RequiredLevel")

	var env listEnvelope[attributeRow]
	if err := c.get(ctx, resource, q, &env); err != nil {
		return nil, fmt.Errorf("list attributes for %s: %w", table, err)
	}

	attrs := make([]metadata.Attribute, 0, len(env.Value))
	for _, row := range env.Value {
		if !row.IsValidForRead {
			continue
		}
		attrs = append(attrs, metadata.Attribute{
			LogicalName:   row.LogicalName,
			SchemaName:    row.SchemaName,
			DisplayName:   row.DisplayName.labelOr(row.SchemaName),
			Type:          row.AttributeType,
			IsCustom:      row.IsCustom,
			RequiredLevel: row.RequiredLevel.Value,
		})
	}

	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].DisplayName < attrs[j].DisplayName
	})
	return attrs, nil
}

type formRow struct {
	FormID  string `json:"formid"`
	Name    string `json:"name"`
	FormXML string `json:"formxml"`
}

// ListForms returns the table's main forms ordered by name. Form XML is only
// requested when includeXML is set; it is an expensive column.
func (c *WebAPIClient) ListForms(ctx context.Context, table string, includeXML bool) ([]metadata.Form, error) {
	selectFields := "formid,name"
	if includeXML {
		selectFields += ",formxml"
	}

	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("objecttypecode eq '%s' and type eq 2", odataQuote(table)))
	q.Set("$select", selectFields)
	q.Set("$orderby", "name")

	var env listEnvelope[formRow]
	if err := c.get(ctx, "systemforms", q, &env); err != nil {
		return nil, fmt.Errorf("list forms for %s: %w", table, err)
	}

	forms := make([]metadata.Form, 0, len(env.Value))
	for _, row := range env.Value {
		forms = append(forms, metadata.Form{ID: row.FormID, Name: row.Name, FormXML: row.FormXML})
	}
	return forms, nil
}

// GetFormXML fetches the markup detail blob for one form.
func (c *WebAPIClient) GetFormXML(ctx context.Context, formID string) (string, error) {
	q := url.Values{}
	q.Set("$select", "formxml")

	var row formRow
	if err := c.get(ctx, fmt.Sprintf("systemforms(%s)", formID), q, &row); err != nil {
		return "", fmt.Errorf("get form xml %s: %w", formID, err)
	}
	return row.FormXML, nil
}

type viewRow struct {
	SavedQueryID string `json:"savedqueryid"`
	Name         string `json:"name"`
	IsDefault    bool   `json:"isdefault"`
	QueryType    int    `json:"querytype"`
	FetchXML     string `json:"fetchxml"`
}

// ListViews returns the table's active public views ordered by name.
func (c *WebAPIClient) ListViews(ctx context.Context, table string, includeFetchXML bool) ([]metadata.View, error) {
	selectFields := "savedqueryid,name,isdefault,querytype"
	if includeFetchXML {
		selectFields += ",fetchxml"
	}

	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("returnedtypecode eq '%s' and statecode eq 0", odataQuote(table)))
	q.Set("$select", selectFields)
	q.Set("$orderby", "name")

	var env listEnvelope[viewRow]
	if err := c.get(ctx, "savedqueries", q, &env); err != nil {
		return nil, fmt.Errorf("list views for %s: %w", table, err)
	}

	views := make([]metadata.View, 0, len(env.Value))
	for _, row := range env.Value {
		// querytype 0 is a public view; the rest are system artifacts.
		if row.QueryType != 0 {
			continue
		}
		views = append(views, metadata.View{
			ID:        row.SavedQueryID,
			Name:      row.Name,
			IsDefault: row.IsDefault,
			QueryType: row.QueryType,
			FetchXML:  row.FetchXML,
		})
	}
	return views, nil
}

// GetViewFetchXML fetches the query detail blob for one view.
func (c *WebAPIClient) GetViewFetchXML(ctx context.Context, viewID string) (string, error) {
	q := url.Values{}
	q.Set("$select", "fetchxml")

	var row viewRow
	if err := c.get(ctx, fmt.Sprintf("savedqueries(%s)", viewID), q, &row); err != nil {
		return "", fmt.Errorf("get view fetchxml %s: %w", viewID, err)
	}
	return row.FetchXML, nil
}
