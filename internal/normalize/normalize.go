package normalize

import (
	"errors"
	"mime"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidFilename indicates the name cannot serve as both object key and document id.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrInvalidContentType indicates the value is not a usable media type.
	ErrInvalidContentType = errors.New("invalid content type")
	// ErrContentTypeNotAllowed indicates a well-formed media type outside the allowlist.
	ErrContentTypeNotAllowed = errors.New("content type not allowed")
)

// MaxFilenameBytes is the S3 object key limit.
const MaxFilenameBytes = 1024

// Filename checks that name can be used verbatim as an object key and as a
// document id. The name is never rewritten: the client polls with the same
// string it uploaded under.
func Filename(name string) error {
	if name == "" || len(name) > MaxFilenameBytes {
		return ErrInvalidFilename
	}
	if !utf8.ValidString(name) {
		return ErrInvalidFilename
	}
	// document ids cannot contain a path separator
	if strings.Contains(name, "/") || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.TrimSpace(name) == "" {
		return ErrInvalidFilename
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrInvalidFilename
		}
	}
	return nil
}

// ContentType parses a MIME type, drops parameters and lowercases it.
// An empty allowlist accepts every well-formed type.
func ContentType(ct string, allowed []string) (string, error) {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return "", ErrInvalidContentType
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.Contains(mt, "/") {
		return "", ErrInvalidContentType
	}
	if len(allowed) == 0 {
		return mt, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), mt) {
			return mt, nil
		}
	}
	return "", ErrContentTypeNotAllowed
}
