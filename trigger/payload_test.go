package trigger_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/file"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

func baseFile() *file.File {
	return &file.File{
		Entity:      ingest.NewEntity(),
		ID:          id.NewFileID(),
		Filename:    "Rapport Q3 2026.pdf",
		Bucket:      "uploads",
		StoragePath: "org-1/raw/rapport.pdf",
		MimeType:    "application/pdf",
		SizeBytes:   123456,
		Layer:       "documents",
		OrgID:       "org-1",
		ProjectID:   "proj-1",
		AppID:       "app-1",
		CreatedBy:   id.NewUserID(),
	}
}

func TestBuildPayloadIdentity(t *testing.T) {
	f := baseFile()
	j := queue.NewJob(f.ID, 3)

	p := trigger.BuildPayload(j, f)

	if p.QueueID != j.ID.String() {
		t.Errorf("queue_id = %q, want %q", p.QueueID, j.ID.String())
	}
	if p.FileID != f.ID.String() {
		t.Errorf("file_id = %q, want %q", p.FileID, f.ID.String())
	}
	if p.StorageBucket != "uploads" || p.StoragePath != "org-1/raw/rapport.pdf" {
		t.Errorf("storage = %q / %q", p.StorageBucket, p.StoragePath)
	}
	if p.OrgID != "org-1" || p.ProjectID != "proj-1" || p.AppID != "app-1" {
		t.Errorf("tenant = %q / %q / %q", p.OrgID, p.ProjectID, p.AppID)
	}
	if p.CreatedBy != f.CreatedBy.String() {
		t.Errorf("created_by = %q", p.CreatedBy)
	}
}

func TestBuildPayloadMetaDefaults(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name      string
		metadata  map[string]any
		projectID string
		want      trigger.Meta
	}{
		{
			name:      "all absent",
			metadata:  nil,
			projectID: "proj-1",
			want: trigger.Meta{
				DocumentTitle:    nil,
				CategorySlug:     nil,
				FilenameClean:    "Rapport Q3 2026.pdf",
				QualityLevel:     trigger.QualityBaseline,
				FileSize:         123456,
				TargetProjectIDs: []string{"proj-1"},
			},
		},
		{
			name: "all present",
			metadata: map[string]any{
				"title":              "Rapport trimestriel",
				"category":           "finance",
				"filename_clean":     "rapport-q3-2026.pdf",
				"quality_level":      "high",
				"target_project_ids": []any{"proj-7", "proj-8"},
			},
			projectID: "proj-1",
			want: trigger.Meta{
				DocumentTitle:    strPtr("Rapport trimestriel"),
				CategorySlug:     strPtr("finance"),
				FilenameClean:    "rapport-q3-2026.pdf",
				QualityLevel:     "high",
				FileSize:         123456,
				TargetProjectIDs: []string{"proj-7", "proj-8"},
			},
		},
		{
			name:      "no project at all",
			metadata:  map[string]any{},
			projectID: "",
			want: trigger.Meta{
				FilenameClean:    "Rapport Q3 2026.pdf",
				QualityLevel:     trigger.QualityBaseline,
				FileSize:         123456,
				TargetProjectIDs: []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseFile()
			f.Metadata = tt.metadata
			f.ProjectID = tt.projectID
			j := queue.NewJob(f.ID, 3)

			got := trigger.BuildPayload(j, f).Metadata
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("meta = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPayloadJSONShape(t *testing.T) {
	f := baseFile()
	f.ProjectID = ""
	j := queue.NewJob(f.ID, 3)

	data, err := json.Marshal(trigger.BuildPayload(j, f))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)

	// Absent title and category are null, not omitted.
	if !strings.Contains(s, `"document_title":null`) {
		t.Errorf("document_title should be null: %s", s)
	}
	if !strings.Contains(s, `"category_slug":null`) {
		t.Errorf("category_slug should be null: %s", s)
	}
	// Empty target list is [], never null.
	if !strings.Contains(s, `"target_project_ids":[]`) {
		t.Errorf("target_project_ids should be []: %s", s)
	}
}
