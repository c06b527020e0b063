package assetloader

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Kind classifies a decoded body.
type Kind int

const (
	// KindBlob is an opaque binary body.
	KindBlob Kind = iota
	// KindText is a body decoded as text.
	KindText
	// KindJSON is a body parsed as JSON.
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindJSON:
		return "json"
	default:
		return "blob"
	}
}

// Body is a fetched and decoded asset.
type Body struct {
	URL         string
	Kind        Kind
	ContentType string

	// Data holds the raw response bytes for every kind.
	Data []byte

	// Text is set for KindText.
	Text string

	// JSON is set for KindJSON, as produced by encoding/json into an any.
	JSON any
}

// Size returns the number of raw bytes in the body.
func (b *Body) Size() int64 {
	return int64(len(b.Data))
}

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// decode classifies raw by content type and, for text-like URLs, by the
// extension of the URL path.
func decode(rawURL, contentType string, raw []byte) (*Body, error) {
	body := &Body{
		URL:         rawURL,
		ContentType: contentType,
		Data:        raw,
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(ErrDecode, "invalid JSON body", goerr.V("url", rawURL), goerr.V("cause", err.Error()))
		}
		body.Kind = KindJSON
		body.JSON = v
	case strings.HasPrefix(ct, "text/") || hasTextExtension(rawURL):
		body.Kind = KindText
		body.Text = string(raw)
	default:
		body.Kind = KindBlob
	}

	return body, nil
}

func hasTextExtension(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return textExtensions[strings.ToLower(path.Ext(p))]
}

// ParseURLList parses a list of URLs in the formats accepted by preload
// hints: a JSON array of strings, a single JSON string, or URLs separated
// by whitespace.
func ParseURLList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		switch v := parsed.(type) {
		case string:
			return []string{v}
		case []any:
			urls := make([]string, 0, len(v))
			for _, item := range v {
				if str, ok := item.(string); ok && str != "" {
					urls = append(urls, str)
				}
			}
			return urls
		}
	}

	return strings.Fields(s)
}
