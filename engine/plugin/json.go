package plugin

import "encoding/json"

// marshalConfig encodes a plugin's config tree to the JSON string the
// C-ABI-style Initialize/Execute entry points take (spec.md §4.5). A nil
// table encodes to "{}".
func marshalConfig(config map[string]any) (string, error) {
	if config == nil {
		config = map[string]any{}
	}
	data, err := json.Marshal(config)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
