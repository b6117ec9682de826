// Package ledger recovers batch pointers from a ledger's event logs.
//
// Scanner pages backwards through a block range in fixed-size windows so no
// single query exceeds a provider's log or range ceiling. Subscribe merges a
// one-off history fetch with live push delivery, handing every matching
// event to the callback exactly once in ascending (block, log index) order.
//
// Both are generic over the decoded event value; the ethledger subpackage
// supplies a go-ethereum provider and the batch publication decoder.
package ledger
