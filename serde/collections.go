package serde

import (
	"bytes"
	"fmt"
	"sort"
)

type listCodec[T any] struct {
	elem     Codec[T]
	capacity int
	pad      []byte
}

// List encodes up to capacity elements as a u32 count followed by capacity
// element slots; unused slots hold the encoding of elem.Default(). A list
// with zero elements decodes as nil.
func List[T any](elem Codec[T], capacity int) Codec[[]T] {
	return listCodec[T]{elem: elem, capacity: capacity, pad: MustEncode(elem, elem.Default())}
}

func (c listCodec[T]) Size() int { return 4 + c.capacity*c.elem.Size() }

func (c listCodec[T]) Append(dst []byte, v []T) ([]byte, error) {
	if len(v) > c.capacity {
		return nil, &CapacityError{What: "list", Len: len(v), Capacity: c.capacity}
	}
	dst = appendU32le(dst, uint32(len(v)))
	var err error
	for i := range v {
		if dst, err = c.elem.Append(dst, v[i]); err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	for i := len(v); i < c.capacity; i++ {
		dst = append(dst, c.pad...)
	}
	return dst, nil
}

func (c listCodec[T]) Decode(b []byte) ([]T, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return nil, err
	}
	n, err := readCount(b, c.capacity, "list")
	if err != nil {
		return nil, err
	}
	es := c.elem.Size()
	var out []T
	if n > 0 {
		out = make([]T, n)
	}
	for i := 0; i < c.capacity; i++ {
		slot := b[4+i*es : 4+(i+1)*es]
		if i >= n {
			if !bytes.Equal(slot, c.pad) {
				return nil, decodeErr("list slot %d: non-default padding", i)
			}
			continue
		}
		if out[i], err = c.elem.Decode(slot); err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	return out, nil
}

func (listCodec[T]) Default() []T { return nil }

type encodedEntry struct {
	key []byte
	val []byte
}

func sortEntries(entries []encodedEntry) {
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })
}

type setCodec[T comparable] struct {
	list listCodec[T]
}

// Set encodes a set like List, with elements ordered by their encoded bytes.
// Decoding a payload whose elements are not strictly ascending fails, which
// rejects duplicates.
func Set[T comparable](elem Codec[T], capacity int) Codec[map[T]struct{}] {
	return setCodec[T]{list: List(elem, capacity).(listCodec[T])}
}

func (c setCodec[T]) Size() int { return c.list.Size() }

func (c setCodec[T]) Append(dst []byte, v map[T]struct{}) ([]byte, error) {
	if len(v) > c.list.capacity {
		return nil, &CapacityError{What: "set", Len: len(v), Capacity: c.list.capacity}
	}
	entries := make([]encodedEntry, 0, len(v))
	for e := range v {
		enc, err := Encode(c.list.elem, e)
		if err != nil {
			return nil, fmt.Errorf("set element: %w", err)
		}
		entries = append(entries, encodedEntry{key: enc})
	}
	sortEntries(entries)
	dst = appendU32le(dst, uint32(len(entries)))
	for _, e := range entries {
		dst = append(dst, e.key...)
	}
	for i := len(entries); i < c.list.capacity; i++ {
		dst = append(dst, c.list.pad...)
	}
	return dst, nil
}

func (c setCodec[T]) Decode(b []byte) (map[T]struct{}, error) {
	elems, err := c.list.Decode(b)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, nil
	}
	es := c.list.elem.Size()
	out := make(map[T]struct{}, len(elems))
	for i := range elems {
		if i > 0 {
			prev := b[4+(i-1)*es : 4+i*es]
			cur := b[4+i*es : 4+(i+1)*es]
			if bytes.Compare(prev, cur) >= 0 {
				return nil, decodeErr("set element %d out of order or duplicated", i)
			}
		}
		out[elems[i]] = struct{}{}
	}
	return out, nil
}

func (setCodec[T]) Default() map[T]struct{} { return nil }

type mapCodec[K comparable, V any] struct {
	key      Codec[K]
	val      Codec[V]
	capacity int
	pad      []byte
}

// Map encodes up to capacity key/value pairs as a u32 count followed by
// capacity pair slots, ordered by encoded key bytes.
func Map[K comparable, V any](key Codec[K], val Codec[V], capacity int) Codec[map[K]V] {
	pad := MustEncode(key, key.Default())
	pad = append(pad, MustEncode(val, val.Default())...)
	return mapCodec[K, V]{key: key, val: val, capacity: capacity, pad: pad}
}

func (c mapCodec[K, V]) Size() int { return 4 + c.capacity*(c.key.Size()+c.val.Size()) }

func (c mapCodec[K, V]) Append(dst []byte, v map[K]V) ([]byte, error) {
	if len(v) > c.capacity {
		return nil, &CapacityError{What: "map", Len: len(v), Capacity: c.capacity}
	}
	entries := make([]encodedEntry, 0, len(v))
	for k, val := range v {
		kb, err := Encode(c.key, k)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		vb, err := Encode(c.val, val)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		entries = append(entries, encodedEntry{key: kb, val: vb})
	}
	sortEntries(entries)
	dst = appendU32le(dst, uint32(len(entries)))
	for _, e := range entries {
		dst = append(dst, e.key...)
		dst = append(dst, e.val...)
	}
	for i := len(entries); i < c.capacity; i++ {
		dst = append(dst, c.pad...)
	}
	return dst, nil
}

func (c mapCodec[K, V]) Decode(b []byte) (map[K]V, error) {
	if err := checkSize(b, c.Size()); err != nil {
		return nil, err
	}
	n, err := readCount(b, c.capacity, "map")
	if err != nil {
		return nil, err
	}
	ks, vs := c.key.Size(), c.val.Size()
	var out map[K]V
	if n > 0 {
		out = make(map[K]V, n)
	}
	var prev []byte
	for i := 0; i < c.capacity; i++ {
		slot := b[4+i*(ks+vs) : 4+(i+1)*(ks+vs)]
		if i >= n {
			if !bytes.Equal(slot, c.pad) {
				return nil, decodeErr("map slot %d: non-default padding", i)
			}
			continue
		}
		kb := slot[:ks]
		if prev != nil && bytes.Compare(prev, kb) >= 0 {
			return nil, decodeErr("map key %d out of order or duplicated", i)
		}
		prev = kb
		k, err := c.key.Decode(kb)
		if err != nil {
			return nil, fmt.Errorf("map key %d: %w", i, err)
		}
		val, err := c.val.Decode(slot[ks:])
		if err != nil {
			return nil, fmt.Errorf("map value %d: %w", i, err)
		}
		out[k] = val
	}
	return out, nil
}

func (mapCodec[K, V]) Default() map[K]V { return nil }
