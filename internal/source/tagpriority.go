package source

import (
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

// TaggedRecord is the intermediate shape both the 1Password and Keeper
// adapters fetch before collapsing by title (spec §3 "Tagged record",
// §4.6 override resolution).
type TaggedRecord struct {
	Title       string
	Value       string
	Description string
	Tags        []string
}

// ResolveByTagPriority collapses records sharing a title to one Item
// each, per spec §4.6: given tag_filters ordered lowest to highest
// priority, the record whose highest-priority tag has the greatest
// index in tag_filters wins; ties are broken by discovery order (last
// wins) with a warning naming the title and the tied tag.
func ResolveByTagPriority(records []TaggedRecord, tagFilters []string, sourceName string, logger *logging.Logger) []secretitem.Item {
	type best struct {
		record TaggedRecord
		idx    int
	}
	order := []string{}
	byTitle := map[string]best{}

	for _, rec := range records {
		idx := maxTagIndex(rec.Tags, tagFilters)
		current, seen := byTitle[rec.Title]
		if !seen {
			order = append(order, rec.Title)
			byTitle[rec.Title] = best{record: rec, idx: idx}
			continue
		}
		switch {
		case idx > current.idx:
			byTitle[rec.Title] = best{record: rec, idx: idx}
		case idx == current.idx:
			tag := ""
			if idx >= 0 && idx < len(tagFilters) {
				tag = tagFilters[idx]
			}
			if logger != nil {
				logger.Warn("%s: tag priority tie for %q on tag %q, using discovery order (last wins)", sourceName, rec.Title, tag)
			}
			byTitle[rec.Title] = best{record: rec, idx: idx}
		}
	}

	items := make([]secretitem.Item, 0, len(order))
	for _, title := range order {
		b := byTitle[title]
		items = append(items, secretitem.Item{
			Name:        title,
			Value:       b.record.Value,
			Description: b.record.Description,
			Source:      sourceName,
		})
	}
	return items
}

// maxTagIndex returns the greatest index in tagFilters among tags, or
// -1 if none of tags appear in tagFilters (including when tagFilters
// is empty).
func maxTagIndex(tags []string, tagFilters []string) int {
	best := -1
	for _, t := range tags {
		for i, f := range tagFilters {
			if t == f && i > best {
				best = i
			}
		}
	}
	return best
}

// tagsMatch reports whether any of recordTags appears in tagFilters;
// an empty tagFilters matches everything (spec §4.6 filtering rule).
func tagsMatch(recordTags, tagFilters []string) bool {
	if len(tagFilters) == 0 {
		return true
	}
	filterSet := make(map[string]bool, len(tagFilters))
	for _, f := range tagFilters {
		filterSet[f] = true
	}
	for _, t := range recordTags {
		if filterSet[t] {
			return true
		}
	}
	return false
}
