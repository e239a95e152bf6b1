// Package reporter prints what the router produced (preview mode) and
// what dispatch did to it (sync mode), and computes the process exit
// code from the final outcome counts (spec §4.10, §6).
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/Josh5/secretpush/internal/config"
	"github.com/Josh5/secretpush/internal/logging"
	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

// PreviewSink is one sink's row in the preview output.
type PreviewSink struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Prefix  string         `json:"prefix"`
	Sources []string       `json:"sources"`
	Items   []PreviewItem  `json:"items"`
}

// PreviewItem is one routed record, with its value blanked out unless
// the caller asked to see values.
type PreviewItem struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// BuildPreview assembles the preview rows for every declared sink from
// the router's per-sink dispatch records.
func BuildPreview(sinks []config.SinkSpec, routed map[string][]pkgsink.Record, printValues bool) []PreviewSink {
	out := make([]PreviewSink, 0, len(sinks))
	for _, s := range sinks {
		prefix, _ := s.Options["prefix"].(string)
		sources := s.Sources
		if s.AllSources() && len(sources) == 0 {
			sources = []string{"*"}
		}
		items := make([]PreviewItem, 0, len(routed[s.Name]))
		for _, rec := range routed[s.Name] {
			value := ""
			if printValues {
				value = rec.Value
			}
			items = append(items, PreviewItem{Name: rec.FullName, Value: value, Description: rec.Description})
		}
		out = append(out, PreviewSink{Name: s.Name, Type: s.Type, Prefix: prefix, Sources: sources, Items: items})
	}
	return out
}

// WritePreview renders the preview in one of "list", "table", or "json".
func WritePreview(w io.Writer, preview []PreviewSink, format string) error {
	switch format {
	case "", "list":
		return writePreviewList(w, preview)
	case "table":
		return writePreviewTable(w, preview)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(preview)
	default:
		return fmt.Errorf("unknown preview format %q", format)
	}
}

func writePreviewList(w io.Writer, preview []PreviewSink) error {
	for _, s := range preview {
		fmt.Fprintf(w, "%s (%s):\n", s.Name, s.Type)
		for _, item := range s.Items {
			if item.Value != "" {
				fmt.Fprintf(w, "  %s = %s\n", item.Name, item.Value)
			} else {
				fmt.Fprintf(w, "  %s\n", item.Name)
			}
		}
	}
	return nil
}

func writePreviewTable(w io.Writer, preview []PreviewSink) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SINK\tTYPE\tNAME\tVALUE\n")
	for _, s := range preview {
		for _, item := range s.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Type, item.Name, item.Value)
		}
	}
	return tw.Flush()
}

// Summary holds the final per-sink and overall outcome counts.
type Summary struct {
	BySink  map[string]map[pkgsink.Outcome]int
	Total   map[pkgsink.Outcome]int
	Failed  int
}

// NewSummary creates an empty Summary ready to accumulate events.
func NewSummary() *Summary {
	return &Summary{
		BySink: make(map[string]map[pkgsink.Outcome]int),
		Total:  make(map[pkgsink.Outcome]int),
	}
}

// Record folds one dispatch event into the summary and, when
// printSyncDetails is on, prints its sync-detail line immediately
// (spec §4.10's "created 'v'" / "changed 'old' -> 'new'" format).
func (s *Summary) Record(logger *logging.Logger, ev pkgsink.Event, printSyncDetails, printValues bool) {
	if s.BySink[ev.SinkName] == nil {
		s.BySink[ev.SinkName] = make(map[pkgsink.Outcome]int)
	}
	s.BySink[ev.SinkName][ev.Outcome]++
	s.Total[ev.Outcome]++
	if ev.Outcome == pkgsink.Failed {
		s.Failed++
	}

	if !printSyncDetails {
		return
	}
	detail := formatActionDetail(ev, printValues)
	if logger != nil {
		logger.SyncEvent(ev.SinkName, ev.FullName, string(ev.Outcome), detail)
	}
}

// formatActionDetail mirrors the original's _format_action_detail:
// "created 'v'", "changed 'old' -> 'new'", "failed: reason".
func formatActionDetail(ev pkgsink.Event, printValues bool) string {
	switch ev.Outcome {
	case pkgsink.Created:
		if printValues {
			return fmt.Sprintf("created %q", ev.NewValue)
		}
		return "created"
	case pkgsink.Changed:
		if printValues {
			return fmt.Sprintf("changed %q -> %q", ev.OldValue, ev.NewValue)
		}
		return "changed"
	case pkgsink.Unchanged:
		return "unchanged"
	case pkgsink.Failed:
		if ev.Err == nil {
			return fmt.Sprintf("failed: %s", ev.Reason)
		}
		msg := ev.Err.Error()
		if !printValues {
			// An AWS validation error can echo the attempted value back in
			// its message; redact it so a run without --print-values can't
			// leak it through the failure log.
			msg = logging.Redact(msg, []string{ev.OldValue, ev.NewValue})
		}
		return fmt.Sprintf("failed: %s: %s", ev.Reason, msg)
	default:
		return string(ev.Outcome)
	}
}

// WriteFinalSummary prints the counts-by-outcome-per-sink and the
// overall totals.
func (s *Summary) WriteFinalSummary(w io.Writer) {
	names := make([]string, 0, len(s.BySink))
	for name := range s.BySink {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		counts := s.BySink[name]
		fmt.Fprintf(w, "%s: created=%d unchanged=%d changed=%d failed=%d\n",
			name, counts[pkgsink.Created], counts[pkgsink.Unchanged], counts[pkgsink.Changed], counts[pkgsink.Failed])
	}
	fmt.Fprintf(w, "total: created=%d unchanged=%d changed=%d failed=%d\n",
		s.Total[pkgsink.Created], s.Total[pkgsink.Unchanged], s.Total[pkgsink.Changed], s.Total[pkgsink.Failed])
}

// ExitCode returns 0 if no item failed, 1 otherwise (spec §6).
func (s *Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}
