/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package submitresult generates the submit_result tool that ends an
// agent conversation. The tool's payload schema is reflected from the
// agent's response type, so the model is forced to produce a result
// that unmarshals cleanly.
package submitresult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"github.com/invopop/jsonschema"

	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
)

// Options configures the generated tool.
type Options struct {
	// ToolName defaults to "submit_result".
	ToolName string
	// Description tells the model when to call the tool.
	Description string
	// PayloadField is the parameter holding the result, default "result".
	PayloadField string
	// PayloadDescription annotates the payload schema.
	PayloadDescription string
	// SuccessMessage is echoed back to the model on acceptance.
	SuccessMessage string
}

func (o *Options) setDefaults() {
	if o.ToolName == "" {
		o.ToolName = "submit_result"
	}
	if o.Description == "" {
		o.Description = "Submit your final result. Call this exactly once, when your work is complete."
	}
	if o.PayloadField == "" {
		o.PayloadField = "result"
	}
	if o.SuccessMessage == "" {
		o.SuccessMessage = "Result accepted."
	}
}

// ClaudeTool builds the submit_result tool for a response type. The
// handler validates the payload against Response and stores it through
// the executor's result pointer, which ends the conversation loop.
func ClaudeTool[Response any](opts Options) (claudetool.Metadata[Response], error) {
	opts.setDefaults()

	payloadSchema, err := reflectSchema[Response](opts.PayloadDescription)
	if err != nil {
		return claudetool.Metadata[Response]{}, err
	}

	handler := func(ctx context.Context, p *claudetool.Params, result *Response) map[string]any {
		log := clog.FromContext(ctx)

		reasoning, errResp := claudetool.Param[string](p, "reasoning")
		if errResp != nil {
			return errResp
		}
		payload, errResp := claudetool.Param[map[string]any](p, opts.PayloadField)
		if errResp != nil {
			return errResp
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return claudetool.Error("marshaling payload: %v", err)
		}
		var parsed Response
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return claudetool.Error("payload does not match the expected schema: %v", err)
		}

		log.With("reasoning", reasoning).Info("agent submitted result")
		*result = parsed
		return map[string]any{"success": true, "message": opts.SuccessMessage}
	}

	return claudetool.Metadata[Response]{
		Definition: anthropic.ToolParam{
			Name:        opts.ToolName,
			Description: anthropic.String(opts.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"reasoning": map[string]any{
						"type":        "string",
						"description": "Explain why you are confident the result is complete and accurate.",
					},
					opts.PayloadField: payloadSchema,
				},
				Required: []string{"reasoning", opts.PayloadField},
			},
		},
		Handler: handler,
	}, nil
}

// reflectSchema derives a JSON schema map for Response.
func reflectSchema[Response any](description string) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	var zero Response
	schema := reflector.Reflect(&zero)
	if schema == nil {
		return nil, errors.New("reflecting response schema")
	}
	if description != "" {
		schema.Description = description
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling response schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding response schema: %w", err)
	}
	return out, nil
}
