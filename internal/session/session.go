// Package session runs the long operations of an editing session (loading,
// downloading, saving and uploading) off the caller's goroutine. Workers never
// touch the live storage: they build a new one that is installed when they
// finish, or serialize a clone of the current one.
package session

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/logic"
	"github.com/wegman-software/osmedit/internal/metrics"
	"github.com/wegman-software/osmedit/internal/osmio"
	"github.com/wegman-software/osmedit/internal/server"
)

var (
	ErrNoServer = errors.New("no server configured")
	ErrNoStore  = errors.New("no snapshot store configured")
	ErrNoFiles  = errors.New("no input files")
)

// Server is the OSM API collaborator
type Server interface {
	Download(ctx context.Context, box *geo.BoundingBox) (*graph.Builder, osmio.Stats, error)
	Upload(ctx context.Context, cs *graph.ChangeSet, comment string) (*server.UploadResult, error)
}

// SnapshotStore persists whole storages
type SnapshotStore interface {
	Save(ctx context.Context, st *graph.Storage, label string) (uuid.UUID, error)
	Load(ctx context.Context, id uuid.UUID) (*graph.Builder, error)
}

// Options configures a Session. Server, Store and Metrics are optional.
type Options struct {
	Workers         int
	Server          Server
	Store           SnapshotStore
	Metrics         *metrics.EditMetrics
	MetricsInterval time.Duration
}

// Session owns the editor logic and installs the results of background work
type Session struct {
	logic *logic.Logic
	opts  Options
	log   *zap.Logger
}

// New creates a session around l. When metrics are configured they observe
// every edit made through l.
func New(l *logic.Logic, opts Options) *Session {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Metrics != nil {
		l.Delegator().SetObserver(opts.Metrics)
	}
	return &Session{
		logic: l,
		opts:  opts,
		log:   logger.Named("session"),
	}
}

// Logic returns the editor logic
func (s *Session) Logic() *logic.Logic { return s.logic }

// LoadResult describes a storage installed by Load, Download or ApplyChange
type LoadResult struct {
	Read  osmio.Stats
	Build graph.BuildStats
}

// runJob runs fn, sampling resources and recording its duration when metrics
// are configured
func (s *Session) runJob(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	start := time.Now()
	if s.opts.Metrics != nil {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		collector := metrics.NewCollector(s.opts.MetricsInterval, s.log, s.opts.Metrics)
		go collector.Start(cctx)
	}

	err := fn(ctx)
	elapsed := time.Since(start)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveJob(job, elapsed, err)
	}
	if err != nil {
		s.log.Warn("Background job failed", zap.String("job", job), zap.Error(err))
		return err
	}
	s.log.Info("Background job complete", zap.String("job", job),
		zap.Duration("duration", elapsed.Round(time.Millisecond)))
	return nil
}

// install builds b and makes it the current storage. Undo history and
// selection are reset.
func (s *Session) install(b *graph.Builder, res *LoadResult) error {
	st, stats := b.Build()
	if err := st.Validate(); err != nil {
		return fmt.Errorf("failed to validate loaded data: %w", err)
	}
	res.Build = stats
	s.logic.SetStorage(st)
	s.log.Info("Installed storage",
		zap.Int("nodes", st.NodeCount()),
		zap.Int("ways", st.WayCount()),
		zap.Int("relations", st.RelationCount()),
		zap.Int("missing_way_nodes", stats.MissingWayNodes),
		zap.Int("dropped_ways", stats.DroppedWays),
		zap.Int("missing_members", stats.MissingMembers))
	return nil
}

// Load parses files concurrently and installs their union. Later files win
// on id clashes. On any error the current storage is left in place.
func (s *Session) Load(ctx context.Context, files ...string) (LoadResult, error) {
	var res LoadResult
	if len(files) == 0 {
		return res, ErrNoFiles
	}

	err := s.runJob(ctx, "load", func(ctx context.Context) error {
		builders := make([]*graph.Builder, len(files))
		stats := make([]osmio.Stats, len(files))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Workers)
		for i, name := range files {
			g.Go(func() error {
				b, st, err := s.readFile(gctx, name)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", name, err)
				}
				builders[i], stats[i] = b, st
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		merged := builders[0]
		res.Read.Add(stats[0])
		for i := 1; i < len(builders); i++ {
			merged.Merge(builders[i])
			res.Read.Add(stats[i])
		}
		return s.install(merged, &res)
	})
	return res, err
}

func (s *Session) readFile(ctx context.Context, name string) (*graph.Builder, osmio.Stats, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, osmio.Stats{}, fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	s.log.Info("Loading file", zap.String("file", name), zap.String("size", FormatBytes(size)))
	pr := newProgressReader(f, size, filepath.Base(name), s.log)
	return osmio.Read(ctx, pr, name)
}

// Download fetches box from the server and installs it
func (s *Session) Download(ctx context.Context, box *geo.BoundingBox) (LoadResult, error) {
	var res LoadResult
	if s.opts.Server == nil {
		return res, ErrNoServer
	}
	err := s.runJob(ctx, "download", func(ctx context.Context) error {
		b, stats, err := s.opts.Server.Download(ctx, box)
		if err != nil {
			return err
		}
		res.Read = stats
		return s.install(b, &res)
	})
	return res, err
}

// ApplyChange applies an osmChange file on top of the current data. The
// current storage is copied before the work starts.
func (s *Session) ApplyChange(ctx context.Context, name string) (LoadResult, error) {
	var res LoadResult
	base := s.logic.Storage().ToBuilder()

	err := s.runJob(ctx, "apply_change", func(ctx context.Context) error {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open change file: %w", err)
		}
		defer f.Close()

		var r io.Reader = f
		if strings.HasSuffix(name, ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				return fmt.Errorf("failed to create gzip reader: %w", err)
			}
			defer gz.Close()
			r = gz
		}

		stats, err := osmio.ApplyChange(ctx, base, r)
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
		res.Read = stats
		return s.install(base, &res)
	})
	return res, err
}

// LoadSnapshot installs a stored snapshot
func (s *Session) LoadSnapshot(ctx context.Context, id uuid.UUID) (LoadResult, error) {
	var res LoadResult
	if s.opts.Store == nil {
		return res, ErrNoStore
	}
	err := s.runJob(ctx, "load_snapshot", func(ctx context.Context) error {
		b, err := s.opts.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		return s.install(b, &res)
	})
	return res, err
}

// Upload sends the pending changes as one changeset. When the data has a
// known area it is downloaded again afterwards, so ids and versions match the
// server.
func (s *Session) Upload(ctx context.Context, comment string) (*server.UploadResult, error) {
	if s.opts.Server == nil {
		return nil, ErrNoServer
	}
	st := s.logic.Storage()
	cs := st.Changes()
	box := st.OriginalBox()

	var result *server.UploadResult
	err := s.runJob(ctx, "upload", func(ctx context.Context) error {
		var err error
		result, err = s.opts.Server.Upload(ctx, cs, comment)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Changes uploaded",
		zap.Int64("changeset", result.ChangesetID),
		zap.Int("elements", result.Diff.Len()))

	if box != nil {
		if _, err := s.Download(ctx, box); err != nil {
			return result, fmt.Errorf("failed to refresh after upload: %w", err)
		}
	}
	return result, nil
}
