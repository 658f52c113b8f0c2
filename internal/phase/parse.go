package phase

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
)

// sanitizeJSON turns an untrusted adapter response into something gjson
// can walk. Models wrap JSON in markdown fences or emit trailing commas;
// jsonrepair fixes what it can. Returns false when no parseable JSON
// remains.
func sanitizeJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)

	// Strip a markdown code fence if present.
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if text == "" {
		return "", false
	}
	if gjson.Valid(text) {
		return text, true
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil || !gjson.Valid(repaired) {
		return "", false
	}
	return repaired, true
}

// stringSlice extracts an array of strings, skipping non-string members.
func stringSlice(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
	}
	return out
}
