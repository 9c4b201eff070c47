package providers

// CleanSchemaForProvider returns a copy of a JSON Schema with keys the given
// provider's API rejects stripped out. The registry keeps the full schema for
// local validation; only the wire copy is cleaned.
func CleanSchemaForProvider(provider string, schema map[string]any) map[string]any {
	drop := map[string]bool{"$schema": true, "$id": true}
	if provider == "groq" {
		// Groq's tool schema validator rejects draft keywords it does not know.
		drop["additionalProperties"] = true
	}
	return cleanMap(schema, drop)
}

func cleanMap(m map[string]any, drop map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if drop[k] {
			continue
		}
		out[k] = cleanValue(v, drop)
	}
	return out
}

func cleanValue(v any, drop map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		return cleanMap(t, drop)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cleanValue(e, drop)
		}
		return out
	default:
		return v
	}
}
