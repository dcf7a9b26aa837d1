package httpupload

import "errors"

// Error definitions for the httpupload package.
var (
	// ErrUnexpectedStatus is returned when the upload endpoint answers with a
	// non-2xx status code.
	ErrUnexpectedStatus = errors.New("unexpected upload response status")

	// ErrMissingURL is returned when a successful response carries neither a
	// JSON url field nor a Location header.
	ErrMissingURL = errors.New("upload response did not include a resource URL")

	// ErrNotRegularFile is returned when the path to upload is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
)
