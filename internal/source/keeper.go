package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

// KeeperSource fetches records from Keeper via the `keeper` CLI,
// invoked as a subprocess producing JSON (spec §4.6). This deliberately
// diverges from original_source's SDK-embedded Python implementation,
// since the spec's contract for this source is a subprocess, matching
// the 1Password adapter's shape.
type KeeperSource struct {
	name        string
	folder      string
	tagFilters  []string
	includeRe   *regexp.Regexp
	concurrency int
	logger      *logging.Logger

	runner commandRunner
}

// NewKeeperSource builds a Keeper adapter from its decoded options
// (folder, tag_filters, include_regex, concurrency).
func NewKeeperSource(name string, opts map[string]interface{}, logger *logging.Logger) (*KeeperSource, error) {
	folder := stringOpt(opts["folder"])
	if folder == "" {
		return nil, dserrors.ConfigError{Field: "sources[].options.folder", Message: "keeper source requires 'folder'"}
	}
	s := &KeeperSource{
		name:        name,
		folder:      folder,
		tagFilters:  stringSlice(opts["tag_filters"]),
		concurrency: intOpt(opts["concurrency"], 8),
		logger:      logger,
		runner:      execRunner,
	}
	if re := stringOpt(opts["include_regex"]); re != "" {
		compiled, err := regexp.Compile(re)
		if err != nil {
			return nil, dserrors.ConfigError{Field: "sources[].options.include_regex", Value: re, Message: err.Error()}
		}
		s.includeRe = compiled
	}
	return s, nil
}

func (s *KeeperSource) Name() string { return s.name }

type keeperListItem struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
}

type keeperCustomField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type keeperRecordDetail struct {
	UID          string              `json:"uid"`
	Title        string              `json:"title"`
	Password     string              `json:"password"`
	Login        string              `json:"login"`
	Notes        string              `json:"notes"`
	CustomFields []keeperCustomField `json:"custom_fields"`
}

func (s *KeeperSource) Collect(ctx context.Context) ([]secretitem.Item, error) {
	listOut, err := s.runner(ctx, "keeper", "list", "--folder", s.folder, "--format", "json")
	if err != nil {
		return nil, dserrors.SourceError{Source: s.name, Message: "keeper list failed", Suggestion: dserrors.Suggestion("keeper", err), Err: err}
	}
	var listItems []keeperListItem
	if err := json.Unmarshal(listOut, &listItems); err != nil {
		return nil, dserrors.SourceError{Source: s.name, Message: "keeper list returned invalid JSON", Err: err}
	}

	var candidates []keeperListItem
	for _, item := range listItems {
		if s.includeRe != nil && !s.includeRe.MatchString(item.Title) {
			continue
		}
		candidates = append(candidates, item)
	}

	details := make([]keeperRecordDetail, len(candidates))
	errs := make([]error, len(candidates))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, item := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, uid string) {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := s.runner(ctx, "keeper", "get", uid, "--format", "json")
			if err != nil {
				errs[i] = err
				return
			}
			var detail keeperRecordDetail
			if err := json.Unmarshal(out, &detail); err != nil {
				errs[i] = err
				return
			}
			details[i] = detail
		}(i, item.UID)
	}
	wg.Wait()

	var records []TaggedRecord
	for i, detail := range details {
		if errs[i] != nil {
			return nil, dserrors.SourceError{Source: s.name, Message: fmt.Sprintf("keeper get %s failed", candidates[i].UID), Err: errs[i]}
		}
		tags := extractKeeperTags(detail.CustomFields)
		if !tagsMatch(tags, s.tagFilters) {
			continue
		}
		value, ok := extractKeeperValue(detail)
		if !ok {
			continue
		}
		records = append(records, TaggedRecord{Title: detail.Title, Value: value, Tags: tags})
	}

	return ResolveByTagPriority(records, s.tagFilters, s.name, s.logger), nil
}

// extractKeeperTags reads the custom field labeled "tags" and splits it
// on commas (spec §4.6).
func extractKeeperTags(fields []keeperCustomField) []string {
	for _, f := range fields {
		if strings.EqualFold(f.Label, "tags") {
			var tags []string
			for _, t := range strings.Split(f.Value, ",") {
				t = strings.TrimSpace(t)
				if t != "" {
					tags = append(tags, t)
				}
			}
			return tags
		}
	}
	return nil
}

// extractKeeperValue implements spec §4.6's value selection priority
// for Keeper: the record-level password, then login, then any other
// custom field (excluding the tags field), then the notes body.
func extractKeeperValue(detail keeperRecordDetail) (string, bool) {
	if detail.Password != "" {
		return detail.Password, true
	}
	if detail.Login != "" {
		return detail.Login, true
	}
	for _, f := range detail.CustomFields {
		if strings.EqualFold(f.Label, "tags") {
			continue
		}
		if f.Value != "" {
			return f.Value, true
		}
	}
	if detail.Notes != "" {
		return detail.Notes, true
	}
	return "", false
}
