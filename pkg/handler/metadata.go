package handler

import (
	"encoding/base64"
	"strings"
)

// ParseMetadataHeader parses the Upload-Metadata header as defined by the
// TUS creation extension, e.g.
// "filename bHVucmpzLnBuZw==,filetype aW1hZ2UvcG5n". A bare key without a
// value decodes to the empty string.
func ParseMetadataHeader(header string) map[string]string {
	meta := make(map[string]string)
	if header == "" {
		return meta
	}

	for _, element := range strings.Split(header, ",") {
		element = strings.TrimSpace(element)
		parts := strings.Split(element, " ")
		if len(parts) > 2 {
			continue
		}

		key := parts[0]
		if key == "" {
			continue
		}

		value := ""
		if len(parts) == 2 {
			dec, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				continue
			}
			value = string(dec)
		}

		meta[key] = value
	}

	return meta
}

// SerializeMetadataHeader is the inverse of ParseMetadataHeader, used when
// echoing metadata back on HEAD responses.
func SerializeMetadataHeader(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}

	var b strings.Builder
	first := true
	for key, value := range meta {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(key)
		b.WriteByte(' ')
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(value)))
	}
	return b.String()
}
