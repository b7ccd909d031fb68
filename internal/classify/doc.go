// Package classify resolves documents to classification records through the
// result cache.
//
// For each document the Service fingerprints the text and asks the store
// whether a result exists. A hit is read back; a miss is classified by the
// Classifier collaborator and written with InsertOnly. In merge mode every
// document is classified and its entries are accumulated with UpsertMerge.
//
// Classifier calls run through a resilience.Executor (retry and circuit
// breaker). Store calls are never retried. Within one process a keyed lock
// keeps a single writer per fingerprint, so two documents with the same text
// in one batch are classified once.
package classify
