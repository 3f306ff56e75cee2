package webhook

import (
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

const changeValuePath = "$.entry[0].changes[0].value"

// changeValue returns the first change value of a Graph webhook envelope.
// A missing path yields an empty object; ok is false when the value exists
// but is not an object.
func changeValue(payload interface{}) (map[string]interface{}, bool) {
	raw, err := jsonpath.Get(changeValuePath, payload)
	if err != nil || raw == nil {
		return map[string]interface{}{}, true
	}
	value, ok := raw.(map[string]interface{})
	return value, ok
}

func isDelete(value map[string]interface{}) bool {
	verb, _ := value["verb"].(string)
	return verb == "delete"
}

// postIDFromValue strips the page prefix from a composite "page_post" id.
func postIDFromValue(value map[string]interface{}) string {
	raw, ok := value["post_id"].(string)
	if !ok {
		return ""
	}
	parts := strings.Split(raw, "_")
	return strings.TrimSpace(parts[len(parts)-1])
}
