package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"procura/internal/core/apperror"
)

const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["stages"],
  "properties": {
    "stages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "role"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "role": {"enum": ["create", "purchase", "approve", "view_only"]},
          "is_hod": {"type": ["boolean", "null"]},
          "creator_access": {"type": "string"},
          "sla": {"type": "string"},
          "sla_unit": {"type": "string"},
          "assigned_users": {
            "type": "array",
            "items": {
              "oneOf": [
                {"type": "string", "minLength": 1},
                {"type": "object", "required": ["user_id"], "properties": {"user_id": {"type": "string", "minLength": 1}}}
              ]
            }
          },
          "available_actions": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "properties": {"is_active": {"type": "boolean"}}
            }
          }
        }
      }
    },
    "routing_rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["trigger_stage", "condition", "action"],
        "properties": {
          "trigger_stage": {"type": "string", "minLength": 1},
          "condition": {
            "type": "object",
            "required": ["field", "operator", "value"],
            "properties": {
              "field": {"type": "string", "minLength": 1},
              "operator": {"enum": ["eq", "in", "not_eq", "lt", "lte", "gt", "gte"]},
              "value": {"type": "array", "items": {"type": "string"}}
            }
          },
          "action": {
            "type": "object",
            "required": ["type", "parameters"],
            "properties": {
              "type": {"const": "NEXT_STAGE"},
              "parameters": {
                "type": "object",
                "required": ["target_stage"],
                "properties": {"target_stage": {"type": "string", "minLength": 1}}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("workflow.json", strings.NewReader(definitionSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("workflow.json")
	})
	return compiledSchema, schemaErr
}

// ValidateDefinitionJSON checks raw workflow data against the definition
// schema and cross-references stage names used by routing rules.
func ValidateDefinitionJSON(raw []byte) (*Data, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperror.NewValidation("workflow data is not valid JSON").WithCause(err)
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			appErr := apperror.NewValidation("workflow data does not match schema")
			for _, issue := range collectIssues(verr) {
				appErr.WithDetail(issue.location, issue.message)
			}
			return nil, appErr
		}
		return nil, fmt.Errorf("validate workflow data: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperror.NewValidation("workflow data is malformed").WithCause(err)
	}
	if err := data.checkReferences(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (d *Data) checkReferences() error {
	names := make(map[string]struct{}, len(d.Stages))
	for _, s := range d.Stages {
		if _, dup := names[s.Name]; dup {
			return apperror.NewValidation(fmt.Sprintf("duplicate stage name %q", s.Name))
		}
		names[s.Name] = struct{}{}
	}
	for i, r := range d.RoutingRules {
		if _, ok := names[r.TriggerStage]; !ok {
			return apperror.NewValidation(fmt.Sprintf("routing rule %d: unknown trigger stage %q", i, r.TriggerStage))
		}
		if _, ok := names[r.Action.Parameters.TargetStage]; !ok {
			return apperror.NewValidation(fmt.Sprintf("routing rule %d: unknown target stage %q", i, r.Action.Parameters.TargetStage))
		}
	}
	return nil
}

type schemaIssue struct {
	location string
	message  string
}

func collectIssues(err *jsonschema.ValidationError) []schemaIssue {
	var issues []schemaIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			loc := node.InstanceLocation
			if loc == "" {
				loc = "#"
			}
			issues = append(issues, schemaIssue{location: loc, message: node.Message})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
