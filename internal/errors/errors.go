// Package errors defines the error kinds secretpush surfaces: a bad
// config aborts the run, a source failure aborts the run (unless the
// caller asked to keep going), a routing conflict is a warning, and a
// sink failure is recorded per item rather than raised.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError describes a problem found while loading or validating the
// merged configuration document.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "config error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in %q", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  try: " + e.Suggestion
	}
	return msg
}

// SourceError describes a source that failed to collect. Depending on
// run mode this either aborts the whole run or is recorded and reported
// while the other sources continue.
type SourceError struct {
	Source     string
	Message    string
	Suggestion string
	Err        error
}

func (e SourceError) Error() string {
	msg := fmt.Sprintf("source %q failed: %s", e.Source, e.Message)
	if e.Suggestion != "" {
		msg += "\n  try: " + e.Suggestion
	}
	return msg
}

func (e SourceError) Unwrap() error { return e.Err }

// RoutingConflict is a warning-level value: two sources produced the
// same item under the same sink, and the earlier declared source won.
type RoutingConflict struct {
	Sink          string
	FullName      string
	KeptSource    string
	DroppedSource string
}

func (c RoutingConflict) String() string {
	return fmt.Sprintf("%s: %q already routed from %q, ignoring %q", c.Sink, c.FullName, c.KeptSource, c.DroppedSource)
}

// Cancelled marks a run that ended because its context was cancelled
// (Ctrl-C). The driver maps this to exit code 130.
type Cancelled struct {
	Stage string
}

func (e Cancelled) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("cancelled during %s", e.Stage)
	}
	return "cancelled"
}

type suggestionRule struct {
	substr     string
	suggestion string
}

// providerSuggestions mirrors the teacher's per-provider hint table,
// narrowed to the CLIs and services secretpush actually shells out to
// or calls.
var providerSuggestions = map[string][]suggestionRule{
	"1password": {
		{"not signed in", "run 'op signin' to authenticate with 1Password"},
		{"session expired", "your 1Password session has expired, run 'op signin' again"},
		{"command not found", "install the 1Password CLI: https://developer.1password.com/docs/cli/get-started/"},
	},
	"keeper": {
		{"not logged in", "run 'keeper login' to authenticate with Keeper"},
		{"command not found", "install Keeper Commander: https://docs.keeper.io/"},
	},
	"aws": {
		{"AccessDenied", "check IAM permissions for the operation being attempted"},
		{"ThrottlingException", "AWS rate-limited the request; check rate_limit_rps before raising it"},
		{"ExpiredToken", "refresh AWS credentials or re-authenticate the configured profile"},
	},
}

// Suggestion returns a canned hint for a provider-sourced error, or the
// empty string if nothing matches.
func Suggestion(provider string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	for _, entry := range providerSuggestions[provider] {
		if strings.Contains(errStr, entry.substr) {
			return entry.suggestion
		}
	}
	return ""
}

// IsCancelled reports whether err is, or wraps, a Cancelled value.
func IsCancelled(err error) bool {
	var c Cancelled
	for err != nil {
		if cc, ok := err.(Cancelled); ok {
			c = cc
			_ = c
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
