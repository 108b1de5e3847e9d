package pipeline

import (
	"context"
	"time"

	"github.com/c360studio/activitygraph/source"
)

// Watch runs the pipeline once and again each time the input content
// changes, until ctx is cancelled. Runs are sequential. A failed run is
// logged and the watch continues.
func (p *Pipeline) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := source.NewFileWatcher(p.opts.Input, debounce, p.logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil {
		return err
	}

	p.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			p.logger.Info("Input changed, reloading", "path", ev.Path, "hash", ev.Hash[:12])
			p.runLogged(ctx)
		}
	}
}

func (p *Pipeline) runLogged(ctx context.Context) {
	// Run logs its own failures.
	_, _ = p.Run(ctx)
}
