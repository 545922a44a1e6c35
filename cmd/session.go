package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/config"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/logic"
	"github.com/wegman-software/osmedit/internal/metrics"
	"github.com/wegman-software/osmedit/internal/pgstore"
	"github.com/wegman-software/osmedit/internal/server"
	"github.com/wegman-software/osmedit/internal/session"
)

// defaultViewRadius is the half edge in meters of the view used when neither
// a bbox flag nor the data give one
const defaultViewRadius = 500

// sessionEnv holds what a command session needs closed at exit
type sessionEnv struct {
	session *session.Session
	store   *pgstore.Store
	metrics *metrics.EditMetrics
}

// openSession wires the editor logic, the API client and, when configured,
// the snapshot store and metrics into a session
func openSession(ctx context.Context, needStore bool) *sessionEnv {
	log := logger.Get()

	rules, err := cfg.Rules()
	if err != nil {
		exitWithError("failed to load tagging rules", err)
	}
	view, err := geo.CreateBoundingBoxForCoordinates(0, 0, defaultViewRadius)
	if err != nil {
		exitWithError("failed to create view", err)
	}
	l := logic.New(cfg.LogicConfig(rules), nil, view)

	env := &sessionEnv{}
	opts := session.Options{
		Workers:         cfg.Workers,
		MetricsInterval: cfg.MetricsInterval,
		Server: server.NewClient(server.Options{
			URL:        cfg.APIURL,
			Username:   cfg.Username,
			Password:   cfg.Password,
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
	}
	if cfg.MetricsFile != "" {
		env.metrics = metrics.NewEditMetrics()
		opts.Metrics = env.metrics
	}
	if needStore {
		if cfg.DatabaseURL == "" {
			exitWithError("database_url is required for snapshots", nil)
		}
		store, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.DBSchema)
		if err != nil {
			exitWithError("failed to connect to database", err)
		}
		env.store = store
		opts.Store = store
	}

	env.session = session.New(l, opts)
	log.Debug("Session ready", zap.Int("workers", cfg.Workers), zap.Bool("snapshots", needStore))
	return env
}

// close releases the store and writes the metrics file
func (e *sessionEnv) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.metrics != nil {
		if err := e.metrics.WriteFile(cfg.MetricsFile); err != nil {
			logger.Get().Warn("Failed to write metrics", zap.Error(err))
		}
	}
}

// focusView shows bbox when given, otherwise the area of the loaded data
func (e *sessionEnv) focusView(bbox string) {
	l := e.session.Logic()
	if bbox != "" {
		b, err := config.ParseBBox(bbox)
		if err != nil {
			exitWithError("invalid bbox", err)
		}
		box, err := b.E7()
		if err != nil {
			exitWithError("invalid bbox", err)
		}
		if err := l.SetViewBox(box); err != nil {
			exitWithError("invalid bbox", err)
		}
	} else if box := l.Storage().OriginalBox(); box != nil {
		if err := l.SetViewBox(box); err != nil {
			exitWithError("invalid data bounds", err)
		}
	}
	w, h := l.ScreenSize()
	if err := l.SetScreenSize(w, h); err != nil {
		exitWithError("failed to fit view", err)
	}
}

// printChanges writes the pending change list to stdout
func printChanges(s *session.Session) int {
	changes := s.Logic().Delegator().ListChanges()
	for _, line := range changes {
		outf("%s\n", line)
	}
	return len(changes)
}
