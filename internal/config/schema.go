package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	dserrors "github.com/Josh5/secretpush/internal/errors"
)

// optionSchemas holds one JSON Schema per (kind, type) pair, grounded in
// the teacher's internal/dsopsdata JSON-Schema-driven validation. Every
// source and sink type's "options" map is checked against its schema at
// load time, before any adapter is constructed.
var optionSchemas = map[string]string{
	"source:env": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"include": {"type": "array", "items": {"type": "string"}},
			"include_regex": {"type": "string"},
			"exclude": {"type": "array", "items": {"type": "string"}},
			"keys": {"type": "array", "items": {"type": "string"}},
			"strip_prefix": {"type": "string"}
		}
	}`,
	"source:yaml": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"files": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"file": {"type": "string"},
			"key": {"type": "string"},
			"include": {"type": "array", "items": {"type": "string"}},
			"include_regex": {"type": "string"},
			"exclude": {"type": "array", "items": {"type": "string"}},
			"keys": {"type": "array", "items": {"type": "string"}},
			"strip_prefix": {"type": "string"}
		}
	}`,
	"source:1password": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["vault"],
		"properties": {
			"vault": {"type": "string", "minLength": 1},
			"tag_filters": {"type": "array", "items": {"type": "string"}},
			"include_regex": {"type": "string"},
			"include": {"type": "array", "items": {"type": "string"}},
			"exclude": {"type": "array", "items": {"type": "string"}},
			"keys": {"type": "array", "items": {"type": "string"}},
			"strip_prefix": {"type": "string"},
			"token": {"type": "string"},
			"concurrency": {"type": "integer", "minimum": 1}
		}
	}`,
	"source:keeper": `{
		"type": "object",
		"additionalProperties": false,
		"required": ["folder"],
		"properties": {
			"folder": {"type": "string", "minLength": 1},
			"tag_filters": {"type": "array", "items": {"type": "string"}},
			"include_regex": {"type": "string"},
			"include": {"type": "array", "items": {"type": "string"}},
			"exclude": {"type": "array", "items": {"type": "string"}},
			"keys": {"type": "array", "items": {"type": "string"}},
			"strip_prefix": {"type": "string"},
			"config_file": {"type": "string"},
			"concurrency": {"type": "integer", "minimum": 1}
		}
	}`,
	"sink:ssm": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"prefix": {"type": "string"},
			"overwrite": {"type": "boolean"},
			"type": {"type": "string", "enum": ["String", "SecureString", "StringList"]},
			"tier": {"type": "string", "enum": ["Standard", "Advanced", "Intelligent-Tiering"]},
			"kms_key_id": {"type": "string"},
			"rate_limit_rps": {"type": "number", "exclusiveMinimum": 0},
			"concurrency": {"type": "integer", "minimum": 1}
		}
	}`,
	"sink:secrets_manager": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"prefix": {"type": "string"},
			"kms_key_id": {"type": "string"},
			"rate_limit_rps": {"type": "number", "exclusiveMinimum": 0},
			"concurrency": {"type": "integer", "minimum": 1}
		}
	}`,
}

// sinkTypeAliases lets "secrets_manager" and "secretsmanager" both
// resolve to the same schema and adapter, matching the names the
// original Python build_sink() accepted.
var sinkTypeAliases = map[string]string{
	"secretsmanager":  "secrets_manager",
	"secrets-manager": "secrets_manager",
}

// sourceTypeAliases mirrors build_source()'s onepassword/op aliases.
var sourceTypeAliases = map[string]string{
	"onepassword": "1password",
	"op":          "1password",
}

func canonicalSourceType(t string) string {
	t = strings.ToLower(t)
	if alias, ok := sourceTypeAliases[t]; ok {
		return alias
	}
	return t
}

func canonicalSinkType(t string) string {
	t = strings.ToLower(t)
	if alias, ok := sinkTypeAliases[t]; ok {
		return alias
	}
	return t
}

func validateOptions(kind, typ string, options map[string]interface{}) error {
	key := kind + ":" + typ
	schema, ok := optionSchemas[key]
	if !ok {
		return dserrors.ConfigError{
			Field:   fmt.Sprintf("%ss[].type", kind),
			Value:   typ,
			Message: fmt.Sprintf("unknown %s type %q", kind, typ),
		}
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(options),
	)
	if err != nil {
		return fmt.Errorf("validating %s options: %w", key, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return dserrors.ConfigError{
			Field:   fmt.Sprintf("%s.options", key),
			Message: strings.Join(msgs, "; "),
		}
	}
	return nil
}
