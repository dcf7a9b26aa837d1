// Package api exposes the upload queue over HTTP. Clients holding a control
// token can enqueue files, abort tasks, inspect the queue, and read the
// upload history. Handlers translate HTTP concerns into queue operations and
// never leak internal error details to clients.
package api
