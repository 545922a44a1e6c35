package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmedit/internal/expire"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/osmio"
)

// Targets selects the outputs of Save. Empty paths are skipped.
type Targets struct {
	// XMLPath receives the whole data set as OSM XML with action attributes
	XMLPath string
	// ChangePath receives the pending changes as osmChange
	ChangePath string
	// ExpirePath receives the tiles touched by the pending changes
	ExpirePath    string
	ExpireMinZoom int
	ExpireMaxZoom int
	// Snapshot stores the data in the snapshot store under SnapshotLabel
	Snapshot      bool
	SnapshotLabel string
}

// SaveResult describes a finished Save
type SaveResult struct {
	Changes      int
	ExpiredTiles int
	SnapshotID   uuid.UUID
}

// SaveJob is a running Save
type SaveJob struct {
	done   chan struct{}
	result SaveResult
	err    error
}

// Done is closed when the job has finished
func (j *SaveJob) Done() <-chan struct{} { return j.done }

// Wait blocks until the job has finished
func (j *SaveJob) Wait() (SaveResult, error) {
	<-j.done
	return j.result, j.err
}

// Save clones the current storage and writes the targets from the clone in
// the background. Editing may continue while the job runs.
func (s *Session) Save(ctx context.Context, t Targets) *SaveJob {
	job := &SaveJob{done: make(chan struct{})}
	if t.Snapshot && s.opts.Store == nil {
		job.err = ErrNoStore
		close(job.done)
		return job
	}

	clone := s.logic.Storage().Clone()
	go func() {
		defer close(job.done)
		job.err = s.runJob(ctx, "save", func(ctx context.Context) error {
			return s.save(ctx, clone, t, &job.result)
		})
	}()
	return job
}

func (s *Session) save(ctx context.Context, st *graph.Storage, t Targets, res *SaveResult) error {
	cs := st.Changes()
	res.Changes = cs.Len()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	if t.XMLPath != "" {
		g.Go(func() error {
			return writeFile(t.XMLPath, func(w io.Writer) error {
				return osmio.WriteXML(w, st)
			})
		})
	}
	if t.ChangePath != "" {
		g.Go(func() error {
			return writeFile(t.ChangePath, func(w io.Writer) error {
				return osmio.WriteChange(w, cs, 0)
			})
		})
	}
	if t.ExpirePath != "" {
		g.Go(func() error {
			tracker := expire.NewTracker(t.ExpireMinZoom, t.ExpireMaxZoom)
			tracker.ExpireChanges(cs)
			res.ExpiredTiles = tracker.Count()
			return tracker.WriteToFile(t.ExpirePath)
		})
	}
	if t.Snapshot {
		g.Go(func() error {
			id, err := s.opts.Store.Save(gctx, st, t.SnapshotLabel)
			if err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			res.SnapshotID = id
			s.log.Info("Snapshot saved", zap.String("id", id.String()), zap.String("label", t.SnapshotLabel))
			return nil
		})
	}
	return g.Wait()
}

// writeFile writes through a temporary file that replaces path on success
func writeFile(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
