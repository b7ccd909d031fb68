package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// session is an open cache for the duration of one command.
type session struct {
	store   store.ResultStore
	backend store.Backend
	metrics *store.Metrics
	opts    *RootOptions
}

// openSession opens and bootstraps the configured store, instrumented when
// --metrics-out is set.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg := o.Config.Store.WithDefaults()
	s, err := store.Open(cmd.Context(), cfg, o.Logger)
	if err != nil {
		return nil, err
	}

	sess := &session{store: s, backend: cfg.Backend, opts: o}
	if o.MetricsOut != "" {
		sess.metrics = store.NewMetrics(string(cfg.Backend))
		sess.store = store.Instrument(s, sess.metrics)
	}
	return sess, nil
}

// close releases the store and flushes metrics.
func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.opts.Logger.Error("error closing store", "error", err)
	}
	if s.metrics != nil {
		if err := s.metrics.WriteTextfile(s.opts.MetricsOut); err != nil {
			s.opts.Logger.Error("error writing metrics", "path", s.opts.MetricsOut, "error", err)
		}
	}
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
