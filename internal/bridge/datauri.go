package bridge

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeDataURL splits a data URL (data:image/jpeg;base64,...) into its
// decoded payload and mime type.
func decodeDataURL(raw string) ([]byte, string, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", fmt.Errorf("not a data URL")
	}
	header, encoded, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, "", fmt.Errorf("missing data URL payload")
	}

	meta := strings.TrimPrefix(header, "data:")
	mime, rest, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "application/octet-stream"
	}
	if rest != "" && rest != "base64" {
		return nil, "", fmt.Errorf("unsupported data URL encoding %q", rest)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty data URL payload")
	}
	return data, mime, nil
}
