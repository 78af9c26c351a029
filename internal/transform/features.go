package transform

import (
	"regexp"
	"strings"
)

var featureSeparator = regexp.MustCompile(`[,，\n]`)

// parseFeatures turns a feature cell into an ordered list of entries.
// Lists are kept as given; a text blob is split on commas and newlines.
func parseFeatures(v any) []string {
	features := []string{}

	switch val := v.(type) {
	case nil:
		return features
	case string:
		return splitFeatures(val)
	case []string:
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				features = append(features, s)
			}
		}
		return features
	case []any:
		for _, item := range val {
			if _, ok := item.(map[string]any); ok {
				// rich text: the segments together form one blob
				text, _ := textOf(val)
				return splitFeatures(text)
			}
		}
		for _, item := range val {
			if s, ok := textOf(item); ok {
				features = append(features, s)
			}
		}
		return features
	}

	if s, ok := textOf(v); ok {
		features = append(features, s)
	}
	return features
}

func splitFeatures(blob string) []string {
	features := []string{}
	for _, part := range featureSeparator.Split(blob, -1) {
		if part = strings.TrimSpace(part); part != "" {
			features = append(features, part)
		}
	}
	return features
}
