package storage

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// decodeBase64Content decodes the base64 payload both Gitea's and GitLab's
// contents/files APIs return, tolerating the embedded newlines some forges
// wrap their base64 blobs with.
func decodeBase64Content(raw string) ([]byte, error) {
	cleaned := strings.ReplaceAll(raw, "\n", "")
	return base64.StdEncoding.DecodeString(cleaned)
}

// containsStatus is a best-effort check for an HTTP status code embedded in
// an SDK error's message, since both forge SDKs return plain errors rather
// than a typed status-code error.
func containsStatus(err error, code int) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), strconv.Itoa(code))
}
