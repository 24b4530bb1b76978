package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// mappingToHash converts a domain Mapping to a map for HSET.
func mappingToHash(m dommap.Mapping) (map[string]string, error) {
	fieldsJSON, err := json.Marshal(m.FieldMappings())
	if err != nil {
		return nil, fmt.Errorf("marshal field mappings: %w", err)
	}
	aliasesJSON, err := json.Marshal(m.Aliases())
	if err != nil {
		return nil, fmt.Errorf("marshal aliases: %w", err)
	}
	return map[string]string{
		"canonical_name": m.CanonicalName(),
		"fields_json":    string(fieldsJSON),
		"aliases_json":   string(aliasesJSON),
		"aggregation":    string(m.Aggregation()),
		"is_system":      strconv.FormatBool(m.IsSystem()),
		"is_active":      strconv.FormatBool(m.IsActive()),
	}, nil
}

// mappingFromHash hydrates a domain Mapping from an HGETALL result map.
func mappingFromHash(h map[string]string) (dommap.Mapping, error) {
	name := h["canonical_name"]
	if name == "" {
		return dommap.Mapping{}, fmt.Errorf("missing canonical_name")
	}

	var fields map[string]string
	if raw := h["fields_json"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return dommap.Mapping{}, fmt.Errorf("unmarshal field mappings for %s: %w", name, err)
		}
	}

	var aliases []string
	if raw := h["aliases_json"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &aliases); err != nil {
			return dommap.Mapping{}, fmt.Errorf("unmarshal aliases for %s: %w", name, err)
		}
	}

	isSystem, _ := strconv.ParseBool(h["is_system"])
	isActive := true
	if raw, ok := h["is_active"]; ok && raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			isActive = parsed
		}
	}

	agg := analysis.AggregationType(h["aggregation"])
	return dommap.Reconstruct(name, fields, agg, aliases, isSystem, isActive), nil
}
