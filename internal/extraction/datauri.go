package extraction

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxUploadSize is the largest invoice file accepted for extraction.
const MaxUploadSize = 5 << 20 // 5MB

// allowedTypes are the MIME types accepted for upload. Both this set and
// MaxUploadSize are enforced before any extraction call is attempted.
var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// AllowedType reports whether contentType is accepted for extraction.
func AllowedType(contentType string) bool {
	return allowedTypes[normalizeContentType(contentType)]
}

// ValidateUpload checks the upload constraints for one file.
func ValidateUpload(contentType string, size int64) error {
	if !AllowedType(contentType) {
		return fmt.Errorf("unsupported file type %q: only PDF, JPEG, PNG and WEBP files are accepted", contentType)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("file is too large: maximum size is 5MB")
	}
	return nil
}

// EncodeDataURI encodes file bytes as a self-describing data URI:
// data:<mimetype>;base64,<encoded_data>
func EncodeDataURI(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", normalizeContentType(contentType), base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI splits a data URI into its MIME type and decoded payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: missing payload")
	}

	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("unsupported data URI encoding %q", encoding)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URI payload: %w", err)
	}

	return normalizeContentType(contentType), data, nil
}

func normalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(contentType))
}
