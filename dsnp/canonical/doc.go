// Package canonical produces deterministic byte encodings of records for
// hashing and signing.
//
// Two encodings are provided. Flatten is the signature pre-image: keys are
// sorted at every level and concatenated with their normalized values, with
// no separators. SortedJSON is the content encoding: standard JSON with keys
// sorted at every nesting level. Neither depends on map iteration order or
// on the order in which a caller populated a record.
package canonical
