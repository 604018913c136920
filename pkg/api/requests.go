package api

import "errors"

var (
	errMalformedRequest = errors.New("first frame must be a JSON navigation request")
	errDocumentRequired = errors.New("document field is required")
	errBadContentType   = errors.New("content_type must be document or codebase")
)
