package slip

import (
	"encoding/base64"
	"strings"

	"github.com/dvloznov/ledger-ai/internal/domain"
)

// ParseDataURI decodes a base64 data URI such as "data:image/png;base64,iVBO...".
// The mime type is mandatory.
func ParseDataURI(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return "", nil, domain.Validationf("slip must be a data URI")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, domain.Validationf("data URI has no payload")
	}

	mimeType, params, _ := strings.Cut(meta, ";")
	if mimeType == "" || !strings.Contains(mimeType, "/") {
		return "", nil, domain.Validationf("data URI must declare a mime type")
	}
	if params != "base64" && !strings.HasSuffix(params, ";base64") {
		return "", nil, domain.Validationf("data URI must be base64 encoded")
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, domain.Validationf("data URI payload is not valid base64: %v", err)
	}
	if len(data) == 0 {
		return "", nil, domain.Validationf("data URI payload is empty")
	}
	return mimeType, data, nil
}
