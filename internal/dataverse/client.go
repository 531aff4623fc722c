package dataverse

import (
	"context"

	"dvexport/internal/metadata"
)

// Solution is a remote collection of tables, identified by its unique name.
type Solution struct {
	ID           string `json:"id"`
	UniqueName   string `json:"unique_name"`
	FriendlyName string `json:"friendly_name"`
	Version      string `json:"version"`
	IsManaged    bool   `json:"is_managed"`
}

// Client is the stateless accessor for catalog collections and detail blobs.
// Every call is a single request/response and may fail; callers own retry
// policy and state.
type Client interface {
	ListSolutions(ctx context.Context) ([]Solution, error)
	ListSolutionTables(ctx context.Context, solution string) ([]metadata.Table, error)
	ListAttributes(ctx context.Context, table string) ([]metadata.Attribute, error)
	ListForms(ctx context.Context, table string, includeXML bool) ([]metadata.Form, error)
	GetFormXML(ctx context.Context, formID string) (string, error)
	ListViews(ctx context.Context, table string, includeFetchXML bool) ([]metadata.View, error)
	GetViewFetchXML(ctx context.Context, viewID string) (string, error)
}
