package transform

import (
	"encoding/json"
	"net/url"
	"strings"
)

// imageCell is one of the shapes an image column has carried over time.
// Each variant knows how to turn itself into display URLs.
type imageCell interface {
	urls(proxyPath string) []string
}

// urlList is an already structured list of image URLs
type urlList []string

// jsonURLList is a text cell holding a JSON-encoded URL list
type jsonURLList string

// attachmentList is the provider's native attachment column
type attachmentList []attachment

type attachment struct {
	FileToken string
	Name      string
	TmpURL    string
	URL       string
}

// classifyImageCell selects the variant for a raw cell, or nil when the cell
// carries nothing usable.
func classifyImageCell(v any) imageCell {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return jsonURLList(val)
	case []string:
		return urlList(val)
	case map[string]any:
		return attachmentList{attachmentFrom(val)}
	case []any:
		for _, item := range val {
			if _, ok := item.(map[string]any); ok {
				return attachmentsFrom(val)
			}
		}
		list := make(urlList, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	}
	return nil
}

func (l urlList) urls(string) []string {
	out := make([]string, 0, len(l))
	for _, u := range l {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// urls decodes the JSON list. Text that is not JSON is taken as one URL.
func (s jsonURLList) urls(proxyPath string) []string {
	text := strings.TrimSpace(string(s))

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return []string{text}
	}

	switch val := decoded.(type) {
	case string:
		return urlList{val}.urls(proxyPath)
	case []any:
		cell := classifyImageCell(val)
		if cell == nil {
			return nil
		}
		return cell.urls(proxyPath)
	}
	// null, objects and scalars carry no URL
	return nil
}

func (l attachmentList) urls(proxyPath string) []string {
	out := make([]string, 0, len(l))
	for _, a := range l {
		target := a.TmpURL
		if target == "" {
			target = a.URL
		}
		if target == "" {
			continue
		}
		out = append(out, proxiedImageURL(proxyPath, target))
	}
	return out
}

func attachmentsFrom(items []any) attachmentList {
	list := make(attachmentList, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			list = append(list, attachmentFrom(m))
		}
	}
	return list
}

func attachmentFrom(m map[string]any) attachment {
	str := func(key string) string {
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}
	return attachment{
		FileToken: str("file_token"),
		Name:      str("name"),
		TmpURL:    str("tmp_url"),
		URL:       str("url"),
	}
}

// proxiedImageURL routes a provider-hosted URL through the image endpoint
func proxiedImageURL(proxyPath, target string) string {
	if proxyPath == "" {
		return target
	}
	return proxyPath + "?url=" + url.QueryEscape(target)
}
