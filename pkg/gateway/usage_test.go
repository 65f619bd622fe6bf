// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pleasehq/please/pkg/transport"
)

func TestUsageTemplateNoRequiredProperties(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{Name: "srv__ping"}
	assert.Equal(t, "please call srv__ping --args '{}'", UsageTemplate(&tool))
}

func TestUsageTemplatePlaceholders(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{
		Name: "srv__create",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"title", "count", "force", "payload"},
			"properties": map[string]any{
				"title":    map[string]any{"type": "string"},
				"count":    map[string]any{"type": "number"},
				"force":    map[string]any{"type": "boolean"},
				"payload":  map[string]any{"type": "object"},
				"optional": map[string]any{"type": "string"},
			},
		},
	}

	usage := UsageTemplate(&tool)
	assert.Contains(t, usage, "please call srv__create --args '")
	assert.Contains(t, usage, `"title": "<string>"`)
	assert.Contains(t, usage, `"count": "<number>"`)
	assert.Contains(t, usage, `"force": "<true|false>"`)
	assert.Contains(t, usage, `"payload": "<value>"`)
	assert.NotContains(t, usage, "optional", "only required properties appear")
}

func TestUsageTemplateEnumTruncation(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{
		Name: "srv__set_level",
		InputSchema: map[string]any{
			"required": []any{"level", "color"},
			"properties": map[string]any{
				"level": map[string]any{
					"type": "string",
					"enum": []any{"debug", "info", "warn", "error", "fatal"},
				},
				"color": map[string]any{
					"type": "string",
					"enum": []any{"red", "green"},
				},
			},
		},
	}

	usage := UsageTemplate(&tool)
	assert.Contains(t, usage, `"level": "<debug|info|warn|...>"`)
	assert.Contains(t, usage, `"color": "<red|green>"`)
}

func TestUsageTemplateIntegerType(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{
		Name: "srv__page",
		InputSchema: map[string]any{
			"required": []any{"offset"},
			"properties": map[string]any{
				"offset": map[string]any{"type": "integer"},
			},
		},
	}
	assert.Contains(t, UsageTemplate(&tool), `"offset": "<number>"`)
}
