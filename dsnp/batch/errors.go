package batch

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

var (
	ErrEmptyBatch        = errors.New("batch has no records")
	ErrMixedTypeBatch    = errors.New("batch mixes announcement types")
	ErrNilRecord         = errors.New("batch record is nil")
	ErrHashMismatch      = errors.New("batch content hash mismatch")
	ErrSchemaMismatch    = errors.New("batch file schema does not match announcement type")
	ErrUnknownColumn     = errors.New("column not present in batch schema")
	ErrColumnNotFiltered = errors.New("column has no membership filter")
	ErrRowsConsumed      = errors.New("batch rows already consumed")
	ErrReaderClosed      = errors.New("batch reader closed")
	ErrBatchTooLarge     = errors.New("batch file exceeds size limit")
)

// MixedTypeBatchError aborts a write when a record's type differs from the
// first record's. Sink is the un-finalized sink, handed back for disposal.
type MixedTypeBatchError struct {
	Expected announcement.Type
	Got      announcement.Type
	// Row is the zero-based position of the offending record.
	Row  int64
	Sink Sink
}

func (e *MixedTypeBatchError) Error() string {
	return fmt.Sprintf("%v: row %d is %s, batch is %s", ErrMixedTypeBatch, e.Row, e.Got, e.Expected)
}

func (e *MixedTypeBatchError) Is(target error) bool {
	return target == ErrMixedTypeBatch
}
