// Package upload implements a serial upload queue. Files are enqueued in
// batches that share an upload function and a set of lifecycle callbacks,
// and are uploaded strictly one at a time in arrival order. Tasks can be
// cancelled by id at any point before they complete.
package upload
