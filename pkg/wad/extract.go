package wad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Outcome says what extraction did with one entry.
type Outcome int

const (
	Written Outcome = iota + 1
	SkippedRedirect
	SkippedExisting
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case SkippedRedirect:
		return "redirect"
	case SkippedExisting:
		return "exists"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ExtractFile writes the decoded content of the entry with the given hash key
// to dir, naming the output file after the canonical key. dir is created if
// needed. Redirect entries produce no file, and neither do existing files
// when the archive was opened WithSkipExisting.
func (a *Archive) ExtractFile(key, dir string) (Outcome, error) {
	e, err := a.Entry(key)
	if err != nil {
		return 0, err
	}
	sink, err := newFileSink(dir, a.cfg.skipExisting)
	if err != nil {
		return 0, err
	}
	defer sink.Close()
	return a.extract(sink, a.entries[e.Key])
}

// ExtractAll writes every entry to dir using a bounded pool of workers.
//
// Entries fail independently: the returned error joins every per-entry
// failure. Cancelling ctx stops scheduling further entries; entries already
// being written either finish or leave no file behind.
func (a *Archive) ExtractAll(ctx context.Context, dir string) error {
	sink, err := newFileSink(dir, a.cfg.skipExisting)
	if err != nil {
		return err
	}
	defer sink.Close()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		errs    []error
		skipped atomic.Int64
	)
	g.SetLimit(a.cfg.workerCount())

	for _, e := range a.sorted() {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o, err := a.extract(sink, e)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			if o == SkippedExisting {
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return errors.Join(append([]error{err}, errs...)...)
	}
	a.cfg.logger.Info("extracted WAD archive", slog.String("dir", dir),
		slog.Int("entries", len(a.entries)),
		slog.Int64("skipped_existing", skipped.Load()),
		slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (a *Archive) extract(sink *fileSink, e *Entry) (Outcome, error) {
	log := a.cfg.logger.With(slog.String("entry", e.Key))
	if e.IsRedirect() {
		log.Debug("skipping redirect entry")
		return SkippedRedirect, nil
	}
	if !sink.shouldWrite(e.Key) {
		log.Info("skipping existing file")
		return SkippedExisting, nil
	}
	data, err := a.Content(e)
	if err != nil {
		return 0, fmt.Errorf("entry %s: %w", e.Key, err)
	}
	if err := sink.write(e.Key, data); err != nil {
		return 0, fmt.Errorf("entry %s: %w", e.Key, err)
	}
	log.Debug("extracted entry", slog.Int("bytes", len(data)))
	return Written, nil
}
