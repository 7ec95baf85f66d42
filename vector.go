package fslm

// Typed append-only vector, serializable in the padded wire format
// described by the spec's §6.3: a u64 element count, followed by
// that many fixed-width elements, followed by zero padding out to
// the next multiple of 8 bytes. Grounded on marisa-vector.h (named in
// original_source/louds-lexicon.h's includes) for the operation set.

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Vector is a generic typed append-only sequence. T must be a
// fixed-width type usable with encoding/binary (uint8, uint16,
// int32, TermId, etc).
type Vector[T any] struct {
	items []T
}

// NewVector returns an empty vector.
func NewVector[T any]() *Vector[T] { return &Vector[T]{} }

// PushBack appends one element.
func (v *Vector[T]) PushBack(x T) { v.items = append(v.items, x) }

// Len returns the number of elements.
func (v *Vector[T]) Len() int { return len(v.items) }

// At returns the i-th element.
func (v *Vector[T]) At(i int) T { return v.items[i] }

// Slice exposes the underlying elements directly (read-only use
// expected).
func (v *Vector[T]) Slice() []T { return v.items }

// elementSize returns sizeof(T) via binary.Size, which works for any
// fixed-width type we use this vector with.
func elementSize[T any]() int {
	var zero T
	n := binary.Size(zero)
	if n < 0 {
		panic(fmt.Sprintf("fslm: type %T is not a fixed-width wire type", zero))
	}
	return n
}

// WriteTo serializes the vector per the padded wire format.
func (v *Vector[T]) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(v.items))); err != nil {
		return err
	}
	if len(v.items) > 0 {
		if err := binary.Write(w, binary.LittleEndian, v.items); err != nil {
			return err
		}
	}
	size := elementSize[T]() * len(v.items)
	if pad := paddingTo8(size); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom deserializes a vector written by WriteTo.
func (v *Vector[T]) ReadFrom(r io.Reader) error {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("vector: reading length: %w", err)
	}
	items := make([]T, n)
	if n > 0 {
		if err := binary.Read(r, binary.LittleEndian, items); err != nil {
			return fmt.Errorf("vector: reading elements: %w", err)
		}
	}
	size := elementSize[T]() * int(n)
	if pad := paddingTo8(size); pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return fmt.Errorf("vector: skipping padding: %w", err)
		}
	}
	v.items = items
	return nil
}

// paddingTo8 returns how many zero bytes must follow n bytes of
// payload to reach the next multiple of 8.
func paddingTo8(n int) int {
	const align = 8
	if r := n % align; r != 0 {
		return align - r
	}
	return 0
}
