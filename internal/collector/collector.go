// Package collector runs every declared source concurrently, applies
// the common include/exclude/keys/strip_prefix filter (spec §4.2) to
// each source's raw output, and reports one Result per source.
package collector

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Josh5/secretpush/internal/config"
	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/internal/secure"
	"github.com/Josh5/secretpush/internal/source"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

// Result is one source's filtered item set, or the error it failed
// with.
type Result struct {
	SourceName string
	Items      []secretitem.Item
	Err        error
}

// Collector builds and runs the adapter for each declared source.
type Collector struct {
	logger *logging.Logger
}

// New builds a Collector. logger may be nil.
func New(logger *logging.Logger) *Collector {
	return &Collector{logger: logger}
}

// CollectAbort runs every source concurrently via errgroup: the first
// source to fail cancels the context the rest are running under, and
// its error is returned once every source has stopped. This is the
// default run mode.
func (c *Collector) CollectAbort(ctx context.Context, specs []config.SourceSpec, vars map[string]string) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]Result, len(specs))
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			items, err := c.collectOne(gctx, spec, vars)
			if err != nil {
				return err
			}
			results[i] = Result{SourceName: spec.Name, Items: items}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CollectContinue runs every source concurrently but never aborts:
// each source's error is recorded on its own Result, and its siblings
// still run to completion. Used for --dry-run plus --print-values,
// where seeing everything that *would* happen is more useful than
// stopping at the first broken source.
func (c *Collector) CollectContinue(ctx context.Context, specs []config.SourceSpec, vars map[string]string) []Result {
	results := make([]Result, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		i, spec := i, spec
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := c.collectOne(ctx, spec, vars)
			results[i] = Result{SourceName: spec.Name, Items: items, Err: err}
		}()
	}
	wg.Wait()
	return results
}

func (c *Collector) collectOne(ctx context.Context, spec config.SourceSpec, vars map[string]string) ([]secretitem.Item, error) {
	adapter, err := source.Build(spec, vars, c.logger)
	if err != nil {
		return nil, err
	}
	raw, err := adapter.Collect(ctx)
	if err != nil {
		if _, ok := err.(dserrors.SourceError); ok {
			return nil, err
		}
		return nil, dserrors.SourceError{Source: spec.Name, Message: err.Error(), Err: err}
	}
	filter, err := source.FilterFromOptions(spec.Options)
	if err != nil {
		return nil, dserrors.ConfigError{Field: "sources[].options", Message: err.Error()}
	}
	protected, err := protectValues(filter.Apply(raw))
	if err != nil {
		return nil, dserrors.SourceError{Source: spec.Name, Message: "securing collected values: " + err.Error(), Err: err}
	}
	return dedupeByName(protected, c.logger, spec.Name), nil
}

// protectValues round-trips each item's value through a memguard
// enclave immediately after collection: it seals the value, opens it
// again, and stores the opened bytes back on the item as a plain Go
// string. The enclave is destroyed before returning, so from here on
// through routing and dispatch each Item.Value holds plaintext.
func protectValues(items []secretitem.Item) ([]secretitem.Item, error) {
	for i, item := range items {
		buf, err := secure.NewSecureBuffer([]byte(item.Value))
		if err != nil {
			return nil, err
		}
		locked, err := buf.Open()
		if err != nil {
			buf.Destroy()
			return nil, err
		}
		items[i].Value = string(locked.Bytes())
		locked.Destroy()
		buf.Destroy()
	}
	return items, nil
}

// dedupeByName collapses duplicate names within a single source's
// output, keeping the last occurrence; not specified directly, chosen
// to mirror the tag-priority resolver's own last-wins tie rule
// (spec §4.6).
func dedupeByName(items []secretitem.Item, logger *logging.Logger, sourceName string) []secretitem.Item {
	indexByName := make(map[string]int, len(items))
	out := make([]secretitem.Item, 0, len(items))
	for _, item := range items {
		if idx, seen := indexByName[item.Name]; seen {
			if logger != nil {
				logger.Warn("%s: duplicate item %q within source, keeping the last one", sourceName, item.Name)
			}
			out[idx] = item
			continue
		}
		indexByName[item.Name] = len(out)
		out = append(out, item)
	}
	return out
}
