package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	dserrors "github.com/Josh5/secretpush/internal/errors"
	"github.com/Josh5/secretpush/internal/logging"
	"github.com/Josh5/secretpush/pkg/secretitem"
)

// OnePasswordSource fetches items from a 1Password vault via the `op`
// CLI, invoked as a subprocess producing JSON (spec §4.6), grounded in
// the teacher's internal/providers/onepassword.go subprocess pattern.
type OnePasswordSource struct {
	name        string
	vault       string
	tagFilters  []string
	includeRe   *regexp.Regexp
	concurrency int
	logger      *logging.Logger

	// runner is overridable in tests so they don't need a real op binary.
	runner commandRunner
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// NewOnePasswordSource builds a 1Password adapter from its decoded
// options (vault, tag_filters, include_regex, concurrency).
func NewOnePasswordSource(name string, opts map[string]interface{}, logger *logging.Logger) (*OnePasswordSource, error) {
	vault := stringOpt(opts["vault"])
	if vault == "" {
		return nil, dserrors.ConfigError{Field: "sources[].options.vault", Message: "1password source requires 'vault'"}
	}
	s := &OnePasswordSource{
		name:        name,
		vault:       vault,
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

func (s *OnePasswordSource) Name() string { return s.name }

type opListItem struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

type opField struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type opItemDetail struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Tags   []string  `json:"tags"`
	Fields []opField `json:"fields"`
}

func (s *OnePasswordSource) Collect(ctx context.Context) ([]secretitem.Item, error) {
	listOut, err := s.runner(ctx, "op", "item", "list", "--vault", s.vault, "--format", "json")
	if err != nil {
		return nil, dserrors.SourceError{Source: s.name, Message: "op item list failed", Suggestion: dserrors.Suggestion("1password", err), Err: err}
	}
	var listItems []opListItem
	if err := json.Unmarshal(listOut, &listItems); err != nil {
		return nil, dserrors.SourceError{Source: s.name, Message: "op item list returned invalid JSON", Err: err}
	}

	var candidates []opListItem
	for _, item := range listItems {
		if s.includeRe != nil && !s.includeRe.MatchString(item.Title) {
			continue
		}
		if !tagsMatch(item.Tags, s.tagFilters) {
			continue
		}
		candidates = append(candidates, item)
	}

	details := make([]opItemDetail, len(candidates))
	errs := make([]error, len(candidates))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, item := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, uid string) {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := s.runner(ctx, "op", "item", "get", uid, "--vault", s.vault, "--format", "json")
			if err != nil {
				errs[i] = err
				return
			}
			var detail opItemDetail
			if err := json.Unmarshal(out, &detail); err != nil {
				errs[i] = err
				return
			}
			details[i] = detail
		}(i, item.ID)
	}
	wg.Wait()

	var records []TaggedRecord
	for i, detail := range details {
		if errs[i] != nil {
			return nil, dserrors.SourceError{Source: s.name, Message: fmt.Sprintf("op item get %s failed", candidates[i].ID), Err: errs[i]}
		}
		value, ok := extractOnePasswordValue(detail.Fields)
		if !ok {
			continue
		}
		records = append(records, TaggedRecord{Title: detail.Title, Value: value, Tags: detail.Tags})
	}

	return ResolveByTagPriority(records, s.tagFilters, s.name, s.logger), nil
}

// extractOnePasswordValue implements spec §4.6's field selection
// priority: named "password" field, then any concealed field, then
// the first field carrying a non-empty value.
func extractOnePasswordValue(fields []opField) (string, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Label, "password") && f.Value != "" {
			return f.Value, true
		}
	}
	for _, f := range fields {
		if f.Type == "CONCEALED" && f.Value != "" {
			return f.Value, true
		}
	}
	for _, f := range fields {
		if f.Value != "" {
			return f.Value, true
		}
	}
	return "", false
}

func intOpt(v interface{}, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
