package workplace

import (
	"regexp"
	"strings"
)

const linkMarker = "Link:"

var externalURLPattern = regexp.MustCompile(`https://(?:www\.)?[^/\s]+/[^\s\)\]]+`)

// NormalizeMessage surfaces the first external URL of a post body as a
// trailing "Link: <url>" line and drops the platform's own link annotation.
// Messages without a URL are returned unchanged.
func NormalizeMessage(message string) string {
	if message == "" {
		return message
	}
	url := externalURLPattern.FindString(message)
	if url == "" {
		return message
	}
	body := message
	if idx := strings.Index(body, linkMarker); idx >= 0 {
		body = body[:idx]
	}
	lines := make([]string, 0, strings.Count(body, "\n")+2)
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	lines = append(lines, linkMarker+" "+url)
	return strings.Join(lines, "\n")
}

func normalizeDetails(details PostDetails) {
	if message, ok := details["message"].(string); ok {
		details["message"] = NormalizeMessage(message)
	}
}
