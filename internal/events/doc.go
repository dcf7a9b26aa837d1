// Package events turns upload queue callbacks into UploadEvents and fans
// them out to registered handlers.
//
// Components that react to uploads (the history recorder, the broker
// publisher, the log handler) implement EventHandler and never see the
// queue itself. The Bridge is the single place that enqueues files with the
// callbacks wired to an EventEmitter.
package events
