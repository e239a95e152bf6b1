// Package router fans collected items out to the sinks that subscribe
// to their source, applying each sink's prefix and resolving same-name
// collisions by source declaration order (spec §5 "Routing").
package router

import (
	"github.com/Josh5/secretpush/internal/collector"
	"github.com/Josh5/secretpush/internal/config"
	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/pkg/sink"
)

// Route builds, for each sink, the ordered dispatch records it should
// receive. results holds each source's collected items, tagged with
// the source's name. Sources absent from results (e.g. never declared) are
// silently skipped; a sink referencing them would already have failed
// config validation.
func Route(sinks []config.SinkSpec, results []collector.Result, logger *logging.Logger) map[string][]sink.Record {
	bySource := make(map[string][]sink.Record, len(results))
	for _, r := range results {
		recs := make([]sink.Record, 0, len(r.Items))
		for _, item := range r.Items {
			recs = append(recs, sink.Record{FullName: item.Name, Value: item.Value, Description: item.Description, SourceName: item.Source})
		}
		bySource[r.SourceName] = recs
	}

	out := make(map[string][]sink.Record, len(sinks))
	for _, s := range sinks {
		prefix := ""
		if p, ok := s.Options["prefix"].(string); ok {
			prefix = p
		}
		sources := s.Sources
		if s.AllSources() {
			sources = allSourceNames(results)
		}

		seen := make(map[string]string) // full_name -> source name that claimed it
		var records []sink.Record
		for _, sourceName := range sources {
			for _, rec := range bySource[sourceName] {
				fullName := prefix + rec.FullName
				if claimedBy, exists := seen[fullName]; exists {
					if logger != nil {
						logger.Warn("%s", dserrors.RoutingConflict{
							Sink:          s.Name,
							FullName:      fullName,
							KeptSource:    claimedBy,
							DroppedSource: sourceName,
						}.String())
					}
					continue
				}
				seen[fullName] = sourceName
				records = append(records, sink.Record{
					FullName:    fullName,
					Value:       rec.Value,
					Description: rec.Description,
					SourceName:  sourceName,
				})
			}
		}
		out[s.Name] = records
	}
	return out
}

// allSourceNames returns every collected source's name in collection
// order, used when a sink subscribes to "*" (every source).
func allSourceNames(results []collector.Result) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.SourceName)
	}
	return names
}
