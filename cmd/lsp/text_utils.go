package main

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return u.Path
	}
	return strings.TrimPrefix(uri, "file://")
}

// documentEnd is the position just past the last character of content.
func documentEnd(content string) Position {
	line := strings.Count(content, "\n")
	last := content[strings.LastIndex(content, "\n")+1:]
	return Position{Line: line, Character: utf8.RuneCountInString(last)}
}
