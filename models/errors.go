package models

import "errors"

// Pipeline error kinds. Callers wrap these with context and test with errors.Is.
var (
	// ErrTransport covers network failures, timeouts and non-2xx responses.
	ErrTransport = errors.New("transport error")

	// ErrParse indicates a page or payload did not have the expected shape.
	ErrParse = errors.New("parse error")

	// ErrExtraction indicates no text could be extracted from a document.
	ErrExtraction = errors.New("extraction error")

	// ErrSummarization indicates no summary could be produced.
	ErrSummarization = errors.New("summarization error")

	// ErrDuplicateKey indicates a meeting with the same id already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound indicates the requested meeting does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration indicates a required capability is missing or misconfigured.
	ErrConfiguration = errors.New("configuration error")
)
