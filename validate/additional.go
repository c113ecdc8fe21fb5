package validate

// AllowAdditionalProperties returns a copy of doc with
// "additionalProperties": true set on the root and, recursively, on every
// property whose type is "object", so stored configs are never rejected
// for carrying unknown fields. The input is not modified.
func AllowAdditionalProperties(doc map[string]any) map[string]any {
	result := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		result[k] = v
	}
	result["additionalProperties"] = true

	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return result
	}

	updated := make(map[string]any, len(props))
	for name, value := range props {
		if prop, ok := value.(map[string]any); ok && prop["type"] == "object" {
			updated[name] = AllowAdditionalProperties(prop)
		} else {
			updated[name] = value
		}
	}
	result["properties"] = updated
	return result
}
