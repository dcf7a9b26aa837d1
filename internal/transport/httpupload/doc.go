// Package httpupload provides the default upload.UploadFunc, a streaming
// multipart/form-data POST with throttled progress reporting. Each request
// carries a BLAKE2b checksum of the file and, when BeforeUpload produced
// one, a bearer token.
package httpupload
