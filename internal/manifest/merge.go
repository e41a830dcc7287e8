package manifest

// unionKeys are keys whose lists merge by set union instead of replacement.
var unionKeys = map[string]bool{
	"tags": true,
}

// DeepMerge recursively merges overlay into base and returns a new map.
// Merge semantics:
//   - maps merge recursively
//   - "tags" lists merge by set union, other lists are replaced
//   - scalars are replaced
//
// Used for values overlays on parameters and job_variables.
func DeepMerge(base, overlay map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		result[k] = deepCopy(v)
	}

	for key, overlayValue := range overlay {
		baseValue, exists := result[key]
		if !exists {
			result[key] = deepCopy(overlayValue)
			continue
		}

		baseMap, baseIsMap := asMap(baseValue)
		overlayMap, overlayIsMap := asMap(overlayValue)
		if baseIsMap && overlayIsMap {
			result[key] = DeepMerge(baseMap, overlayMap)
			continue
		}

		if unionKeys[key] {
			baseList, baseIsList := toStringSlice(baseValue)
			overlayList, overlayIsList := toStringSlice(overlayValue)
			if baseIsList && overlayIsList {
				result[key] = stringSliceUnion(baseList, overlayList)
				continue
			}
		}

		result[key] = deepCopy(overlayValue)
	}

	return result
}

// MergeTags returns the set union of two tag lists, preserving first-seen
// order.
func MergeTags(base, overlay []string) []string {
	seen := make(map[string]bool, len(base)+len(overlay))
	result := make([]string, 0, len(base)+len(overlay))

	for _, lists := range [][]string{base, overlay} {
		for _, tag := range lists {
			if !seen[tag] {
				seen[tag] = true
				result = append(result, tag)
			}
		}
	}

	return result
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case StepArgs:
		return v, true
	default:
		return nil, false
	}
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result[i] = s
		}
		return result, true
	default:
		return nil, false
	}
}

func stringSliceUnion(a, b []string) []any {
	merged := MergeTags(a, b)
	result := make([]any, len(merged))
	for i, s := range merged {
		result[i] = s
	}
	return result
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, item := range v {
			result[k] = deepCopy(item)
		}
		return result
	case StepArgs:
		result := make(StepArgs, len(v))
		for k, item := range v {
			result[k] = deepCopy(item)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = deepCopy(item)
		}
		return result
	case []string:
		result := make([]string, len(v))
		copy(result, v)
		return result
	default:
		return value
	}
}
