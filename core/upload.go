package core

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// content types accepted for uploads
const (
	ContentTypePDF  = "application/pdf"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeZIP  = "application/zip"
	ContentTypeText = "text/plain"
)

// UploadTypes are all the content types a stored file may have.
var UploadTypes = []string{ContentTypePDF, ContentTypePNG, ContentTypeJPEG, ContentTypeZIP, ContentTypeText}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

const (
	sniffLen = 3072

	ContentTypeOctetStream = "application/octet-stream"
)

// DetectContentType sniffs the head of the upload.
// The sniffed bytes are replayed, so Reader can still be consumed from the start.
func (up *Upload) DetectContentType() (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Reader, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	up.Reader = io.MultiReader(bytes.NewReader(head), up.Reader)

	ct := mimetype.Detect(head).String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct, nil
}

// Check validates the upload's size and sniffed content type, and returns the latter.
func (up *Upload) Check(field string, maxSize int64, allowedTypes ...string) (string, error) {
	if up.Size <= 0 {
		return "", NewValidationError(nil, FieldError{Field: field, Error: "file is empty"})
	}
	if maxSize > 0 && up.Size > maxSize {
		return "", NewValidationError(nil, FieldError{
			Field: field,
			Error: fmt.Sprintf("file is too large (max %s)", humanSize(maxSize)),
		})
	}

	ct, err := up.DetectContentType()
	if err != nil {
		return "", err
	}
	if len(allowedTypes) > 0 && !ContainsString(allowedTypes, ct) {
		return "", NewValidationError(nil, FieldError{Field: field, Error: "unsupported file type " + ct})
	}
	return ct, nil
}

// ExtensionFor returns the file extension of a sniffed content type.
// The client's filename is never trusted for it.
func ExtensionFor(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

// ContentTypeOf returns the content type to serve a stored key with.
// Keys not ending with the extension of one of UploadTypes are served as a binary stream.
func ContentTypeOf(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return ContentTypeOctetStream
	}
	for _, ct := range UploadTypes {
		if ExtensionFor(ct) == ext {
			if ct == ContentTypeText {
				return ct + "; charset=utf-8"
			}
			return ct
		}
	}
	return ContentTypeOctetStream
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
