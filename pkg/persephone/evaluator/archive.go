package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/tartarus-sandbox/persephone/pkg/erebus"
)

const reportPrefix = "reports/"

// Archive persists evaluation reports as JSON blobs.
type Archive struct {
	store erebus.Store
}

func NewArchive(store erebus.Store) *Archive {
	return &Archive{store: store}
}

// ReportKey is the blob key of the report with the given ID.
func ReportKey(id string) string {
	return reportPrefix + id + ".json"
}

// Save writes report under ReportKey(report.ID) and returns the key.
func (a *Archive) Save(ctx context.Context, report *EvaluationReport) (string, error) {
	if report.ID == "" {
		return "", fmt.Errorf("report has no id")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	key := ReportKey(report.ID)
	if err := a.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to archive report %s: %w", report.ID, err)
	}
	return key, nil
}

func (a *Archive) Load(ctx context.Context, id string) (*EvaluationReport, error) {
	rc, err := a.store.Get(ctx, ReportKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", id, err)
	}
	defer rc.Close()

	var report EvaluationReport
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

// List returns the IDs of archived reports.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			ids = append(ids, strings.TrimSuffix(path.Base(k), ".json"))
		}
	}
	return ids, nil
}
