// Package record defines the in-memory form of a classification result and
// its persisted payload encoding.
//
// A Record is a list of classification entries (category, matched text,
// optional score and span) plus any fields this version of the code does not
// know about, which are carried through decode and encode untouched. The
// payload is JSON; it never contains the fingerprint of the text it
// describes. SourceFingerprint exists only in memory, to remember which cache
// row a record was read from.
package record
