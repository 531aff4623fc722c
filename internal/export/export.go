package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dvexport/internal/dataverse"
	"dvexport/internal/metadata"
	"dvexport/internal/session"
)

// ErrNotReady is returned when the session still has tables whose metadata
// has not finished loading.
var ErrNotReady = errors.New("session metadata not fully loaded")

// ErrEmptySession is returned when there is nothing to export.
var ErrEmptySession = errors.New("no tables selected")

// Options configures one export run.
type Options struct {
	Environment  string
	Solution     string
	ProjectName  string
	OutputFolder string
}

// Document is the exported metadata dictionary. Field names follow the
// catalog's own casing so downstream consumers see familiar keys.
type Document struct {
	ExportID    string        `json:"ExportId"`
	GeneratedAt time.Time     `json:"GeneratedAt"`
	Environment string        `json:"Environment"`
	Solution    string        `json:"Solution"`
	ProjectName string        `json:"ProjectName"`
	Tables      []TableRecord `json:"Tables"`
}

type TableRecord struct {
	LogicalName          string            `json:"LogicalName"`
	DisplayName          string            `json:"DisplayName"`
	SchemaName           string            `json:"SchemaName"`
	ObjectTypeCode       int               `json:"ObjectTypeCode"`
	PrimaryIDAttribute   string            `json:"PrimaryIdAttribute"`
	PrimaryNameAttribute string            `json:"PrimaryNameAttribute"`
	Forms                []FormRecord      `json:"Forms"`
	View                 *ViewRecord       `json:"View"`
	Attributes           []AttributeRecord `json:"Attributes"`
}

type FormRecord struct {
	FormID     string `json:"FormId"`
	FormName   string `json:"FormName"`
	FieldCount int    `json:"FieldCount"`
}

type ViewRecord struct {
	ViewID   string `json:"ViewId"`
	ViewName string `json:"ViewName"`
	FetchXML string `json:"FetchXml"`
}

type AttributeRecord struct {
	LogicalName string `json:"LogicalName"`
	SchemaName  string `json:"SchemaName"`
	DisplayName string `json:"DisplayName"`
	Type        string `json:"AttributeType"`
	IsCustom    bool   `json:"IsCustom"`
}

// Exporter assembles and writes the metadata dictionary. The client is only
// needed for detail blobs the session did not already fetch; those lookups
// degrade on failure instead of aborting the run.
type Exporter struct {
	Client dataverse.Client
}

// Run builds the document from the session and writes it, plus a sidecar
// naming the environment, into opts.OutputFolder. All-or-nothing: the files
// appear only when the whole document assembled and both writes succeeded.
// Returns the path of the dictionary file.
func (e *Exporter) Run(ctx context.Context, store *session.Store, opts Options) (string, error) {
	snaps := store.Snapshot()
	if len(snaps) == 0 {
		return "", ErrEmptySession
	}
	if !store.ExportReady() {
		return "", ErrNotReady
	}

	doc := Document{
		ExportID:    "exp_" + uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Environment: opts.Environment,
		Solution:    opts.Solution,
		ProjectName: opts.ProjectName,
		Tables:      make([]TableRecord, 0, len(snaps)),
	}

	for _, snap := range snaps {
		doc.Tables = append(doc.Tables, e.buildTable(ctx, snap))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	if err := os.MkdirAll(opts.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("create output folder: %w", err)
	}

	docPath := filepath.Join(opts.OutputFolder, opts.ProjectName+" Metadata Dictionary.json")
	if err := os.WriteFile(docPath, data, 0644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	sidecar := filepath.Join(opts.OutputFolder, "DataverseURL.txt")
	if err := os.WriteFile(sidecar, []byte(opts.Environment+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write environment sidecar: %w", err)
	}

	return docPath, nil
}

func (e *Exporter) buildTable(ctx context.Context, snap session.TableSnapshot) TableRecord {
	rec := TableRecord{
		LogicalName:          snap.Table.LogicalName,
		DisplayName:          snap.Table.DisplayName,
		SchemaName:           snap.Table.SchemaName,
		ObjectTypeCode:       snap.Table.ObjectTypeCode,
		PrimaryIDAttribute:   snap.Table.PrimaryIDAttribute,
		PrimaryNameAttribute: snap.Table.PrimaryNameAttribute,
		Forms:                make([]FormRecord, 0, len(snap.Forms)),
	}

	for _, form := range snap.Forms {
		rec.Forms = append(rec.Forms, FormRecord{
			FormID:     form.ID,
			FormName:   form.Name,
			FieldCount: e.formFieldCount(ctx, snap.Table.LogicalName, form),
		})
	}

	if view := snap.View(); view != nil {
		rec.View = &ViewRecord{
			ViewID:   view.ID,
			ViewName: view.Name,
			FetchXML: e.viewFetchXML(ctx, snap.Table.LogicalName, *view),
		}
	}

	for _, attr := range snap.SelectedAttributes() {
		rec.Attributes = append(rec.Attributes, AttributeRecord{
			LogicalName: attr.LogicalName,
			SchemaName:  attr.SchemaName,
			DisplayName: attr.DisplayName,
			Type:        attr.Type,
			IsCustom:    attr.IsCustom,
		})
	}
	return rec
}

// formFieldCount counts the fields a form's markup lays out. When the
// session never fetched the markup and the catalog lookup fails too, the
// count degrades to zero rather than failing the export.
func (e *Exporter) formFieldCount(ctx context.Context, table string, form metadata.Form) int {
	xml := form.FormXML
	if xml == "" && e.Client != nil {
		fetched, err := e.Client.GetFormXML(ctx, form.ID)
		if err != nil {
			log.Printf("WARN: form xml for %s/%s: %v", table, form.ID, err)
			return 0
		}
		xml = fetched
	}
	return len(metadata.FormFields(xml))
}

// viewFetchXML resolves the view's query, degrading to empty on failure.
func (e *Exporter) viewFetchXML(ctx context.Context, table string, view metadata.View) string {
	if view.FetchXML != "" || e.Client == nil {
		return view.FetchXML
	}
	fetched, err := e.Client.GetViewFetchXML(ctx, view.ID)
	if err != nil {
		log.Printf("WARN: view fetchxml for %s/%s: %v", table, view.ID, err)
		return ""
	}
	return fetched
}
