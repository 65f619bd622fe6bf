// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pleasehq/please/pkg/transport"
)

const usageEnumLimit = 3

// UsageTemplate renders the shell command a host can run to execute a tool
// through the CLI, with a placeholder JSON document derived from the tool's
// required properties. Routing execution through a shell command lets the
// host apply per-tool permission policy.
func UsageTemplate(tool *transport.ToolDefinition) string {
	required := requiredProperties(tool.InputSchema)
	if len(required) == 0 {
		return fmt.Sprintf("please call %s --args '{}'", tool.Name)
	}

	fields := make([]string, 0, len(required))
	for _, name := range required {
		schema, _ := propertySchema(tool.InputSchema, name)
		fields = append(fields, fmt.Sprintf("%q: %q", name, placeholder(schema)))
	}
	return fmt.Sprintf("please call %s --args '{%s}'", tool.Name, strings.Join(fields, ", "))
}

func requiredProperties(inputSchema map[string]any) []string {
	raw, ok := inputSchema["required"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func propertySchema(inputSchema map[string]any, name string) (map[string]any, bool) {
	props, ok := inputSchema["properties"].(map[string]any)
	if !ok {
		return nil, false
	}
	schema, ok := props[name].(map[string]any)
	return schema, ok
}

// placeholder derives a human-readable value hint from one property schema.
func placeholder(schema map[string]any) string {
	if schema == nil {
		return "<value>"
	}

	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		values := make([]string, 0, usageEnumLimit)
		for _, v := range enum {
			if len(values) == usageEnumLimit {
				values = append(values, "...")
				break
			}
			values = append(values, fmt.Sprintf("%v", v))
		}
		return "<" + strings.Join(values, "|") + ">"
	}

	switch schema["type"] {
	case "string":
		return "<string>"
	case "number", "integer":
		return "<number>"
	case "boolean":
		return "<true|false>"
	default:
		return "<value>"
	}
}
