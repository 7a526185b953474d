package webhooks

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// ApplyTemplate replaces every {{path}} with vars[path]. Unknown paths are left as written.
func ApplyTemplate(template string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(template, func(m string) string {
		key := templateVar.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// templateVars flattens the payload into dotted paths next to triggerEvent and createdAt,
// so a template can reference {{oooEntry.user.email}}.
func templateVars(trigger, createdAt string, payload any) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}

	vars := map[string]string{
		"triggerEvent": trigger,
		"createdAt":    createdAt,
	}
	flatten("", tree, vars)
	return vars, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		if prefix != "" {
			out[prefix] = encodeJSON(t)
		}
		for k, child := range t {
			flatten(join(prefix, k), child, out)
		}
	case []any:
		out[prefix] = encodeJSON(t)
		for i, child := range t {
			flatten(join(prefix, strconv.Itoa(i)), child, out)
		}
	case string:
		out[prefix] = t
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = encodeJSON(t)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.Join([]string{prefix, key}, ".")
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
