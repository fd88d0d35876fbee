package linalg

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// record is the persisted form of an assembled result.
type record struct {
	Rows, Cols int
	Data       []float64
	Indptr     []int
	Ind        []int
}

// Encode serializes v and reports its storage class. The class must be
// passed back to Decode.
func Encode(v any) ([]byte, Storage, error) {
	var rec record
	storage := StorageOf(v)
	switch x := v.(type) {
	case *mat.Dense:
		rec.Rows, rec.Cols = x.Dims()
		rec.Data = MatrixData(x)
	case *CSR:
		rec.Rows, rec.Cols = x.Dims()
		rec.Indptr, rec.Ind, rec.Data = x.Raw()
	case *mat.VecDense:
		rec.Rows, rec.Cols = x.Len(), 1
		rec.Data = VectorData(x)
	case float64:
		rec.Rows, rec.Cols = 1, 1
		rec.Data = []float64{x}
	default:
		return nil, StorageUnknown, fmt.Errorf("%w: %T", ErrUnsupportedStorage, v)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, StorageUnknown, fmt.Errorf("linalg: encode %s: %w", storage, err)
	}
	return buf.Bytes(), storage, nil
}

// Decode reconstructs a value written by Encode with the same storage class.
func Decode(data []byte, storage Storage) (any, error) {
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("linalg: decode %s: %w", storage, err)
	}

	switch storage {
	case StorageDense:
		if len(rec.Data) != rec.Rows*rec.Cols {
			return nil, fmt.Errorf("%w: dense record holds %d values for %dx%d", ErrBadShape, len(rec.Data), rec.Rows, rec.Cols)
		}
		return NewDense(rec.Rows, rec.Cols, rec.Data), nil
	case StorageSparse:
		if rec.Indptr == nil {
			rec.Indptr = make([]int, rec.Rows+1)
		}
		return NewCSR(rec.Rows, rec.Cols, rec.Indptr, rec.Ind, rec.Data)
	case StorageVector:
		if len(rec.Data) != rec.Rows {
			return nil, fmt.Errorf("%w: vector record holds %d values for length %d", ErrBadShape, len(rec.Data), rec.Rows)
		}
		return NewVector(rec.Data), nil
	case StorageScalar:
		if len(rec.Data) != 1 {
			return nil, fmt.Errorf("%w: scalar record holds %d values", ErrBadShape, len(rec.Data))
		}
		return rec.Data[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStorage, storage)
	}
}
