package archive

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sunthar/taskrelay/pkg/cerr"
	"github.com/sunthar/taskrelay/pkg/storage"
)

// ItemOutcome records how one action item fared during a run.
type ItemOutcome struct {
	Title   string `json:"title"`
	TaskID  string `json:"task_id,omitempty"`
	TaskURL string `json:"task_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Run is the durable record of one transcript processing run.
type Run struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	MeetingTitle string        `json:"meeting_title"`
	Summary      string        `json:"summary,omitempty"`
	Items        []ItemOutcome `json:"items"`
	Failed       int           `json:"failed"`
}

// NewRunID returns a fresh run identifier. ULIDs sort by creation time,
// which keeps the archive listing chronological.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Archive persists run records under runs/<runID>.json.
type Archive struct {
	store storage.Storage
}

func New(store storage.Storage) *Archive {
	return &Archive{store: store}
}

func runPath(runID string) string {
	return path.Join("runs", runID+".json")
}

// Save writes one run record.
func (a *Archive) Save(ctx context.Context, run *Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode run record", err)
	}
	if err := a.store.Write(ctx, runPath(run.ID), data); err != nil {
		return cerr.WrapStorageWriteError("run record "+run.ID, err)
	}
	return nil
}

// Load reads one run record by ID.
func (a *Archive) Load(ctx context.Context, runID string) (*Run, error) {
	data, err := a.store.Read(ctx, runPath(runID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("run record "+runID, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, cerr.NewError(cerr.Internal,
			fmt.Sprintf("failed to decode run record %s", runID), err)
	}
	return &run, nil
}

// List returns all archived run IDs, oldest first.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	paths, err := a.store.List(ctx, "runs/")
	if err != nil {
		return nil, cerr.WrapStorageReadError("run archive", err)
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := path.Base(p)
		if ext := path.Ext(base); ext == ".json" {
			ids = append(ids, base[:len(base)-len(ext)])
		}
	}
	sort.Strings(ids)
	return ids, nil
}
