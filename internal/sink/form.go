// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sink

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormEntries flattens the JSON form of v into dotted keys with string values:
// {"view":{"action":{"count":1}}} becomes {"view.action.count": "1"}.
// Array elements use their index as key segment.
func FormEntries(v interface{}) (map[string]string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var tree interface{}
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	out := make(map[string]string)
	flatten(tree, "", out)
	return out, nil
}

func flatten(node interface{}, prefix string, out map[string]string) {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, child := range n {
			flatten(child, prefix+k+".", out)
		}
	case []interface{}:
		for i, child := range n {
			flatten(child, prefix+strconv.Itoa(i)+".", out)
		}
	default:
		if prefix == "" {
			return
		}
		out[prefix[:len(prefix)-1]] = scalar(n)
	}
}

func scalar(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return "null"
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(s)
	}
}
