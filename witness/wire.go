package witness

import (
	"encoding/binary"
	"errors"
	"fmt"

	"zkledger.dev/node/ledger"
)

const Version uint16 = 1

var ErrMalformed = errors.New("witness: malformed encoding")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// MarshalBinary layout, all integers little-endian:
//
//	u16 version
//	outputs        fields
//	commands       components
//	attachments    components
//	notary         components
//	timewindow     components
//	signers        components
//	parameters     components
//	salt[32]
//	inputs         components
//	input utxos    fields
//	ref utxos      fields
//	input nonces   u32 count | count x [32]
//	ref nonces     u32 count | count x [32]
//
// components = u32 count | count x (u32 len | bytes)
// fields     = u32 count | count x (u16 name len | name | u32 index | u32 len | bytes)
func (w *Witness) MarshalBinary() ([]byte, error) {
	out := binary.LittleEndian.AppendUint16(nil, Version)
	var err error
	if out, err = appendFields(out, w.Outputs); err != nil {
		return nil, err
	}
	for _, g := range [][][]byte{w.Commands, w.Attachments, w.Notary, w.TimeWindow, w.Signers, w.Parameters} {
		out = appendComponents(out, g)
	}
	out = append(out, w.PrivacySalt[:]...)
	out = appendComponents(out, w.Inputs)
	if out, err = appendFields(out, w.InputUtxos); err != nil {
		return nil, err
	}
	if out, err = appendFields(out, w.ReferenceUtxos); err != nil {
		return nil, err
	}
	out = appendHashes(out, w.InputNonces)
	out = appendHashes(out, w.ReferenceNonces)
	return out, nil
}

func appendComponents(out []byte, cs [][]byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(cs)))
	for _, c := range cs {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c)))
		out = append(out, c...)
	}
	return out
}

func appendFields(out []byte, fs []Field) ([]byte, error) {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fs)))
	for _, f := range fs {
		if len(f.Label.TypeName) > 0xffff {
			return nil, fmt.Errorf("witness: type name of %d bytes", len(f.Label.TypeName))
		}
		if f.Label.Index < 0 {
			return nil, fmt.Errorf("witness: negative label index %d", f.Label.Index)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Label.TypeName)))
		out = append(out, f.Label.TypeName...)
		// #nosec G115 -- checked non-negative above.
		out = binary.LittleEndian.AppendUint32(out, uint32(f.Label.Index))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(f.Bytes)))
		out = append(out, f.Bytes...)
	}
	return out, nil
}

func appendHashes(out []byte, hs []ledger.SecureHash) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(hs)))
	for _, h := range hs {
		out = append(out, h[:]...)
	}
	return out
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, malformed("unexpected EOF (%s)", what)
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	b, err := r.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32(what string) (uint32, error) {
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// count reads a u32 element count and rejects counts that could not fit in
// the remaining input at minSize bytes per element.
func (r *reader) count(minSize int, what string) (int, error) {
	n, err := r.u32(what)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(len(r.b)-r.off) {
		return 0, malformed("%s count %d overflows input", what, n)
	}
	return int(n), nil
}

func (r *reader) components(what string) ([][]byte, error) {
	n, err := r.count(4, what)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([][]byte, n)
	for i := range out {
		l, err := r.u32(what)
		if err != nil {
			return nil, err
		}
		c, err := r.take(int(l), what)
		if err != nil {
			return nil, err
		}
		out[i] = clone(c)
	}
	return out, nil
}

func (r *reader) fields(what string) ([]Field, error) {
	n, err := r.count(10, what)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]Field, n)
	for i := range out {
		nl, err := r.u16(what)
		if err != nil {
			return nil, err
		}
		name, err := r.take(int(nl), what)
		if err != nil {
			return nil, err
		}
		idx, err := r.u32(what)
		if err != nil {
			return nil, err
		}
		l, err := r.u32(what)
		if err != nil {
			return nil, err
		}
		c, err := r.take(int(l), what)
		if err != nil {
			return nil, err
		}
		out[i] = Field{Label: Label{TypeName: string(name), Index: int(idx)}, Bytes: clone(c)}
	}
	return out, nil
}

func (r *reader) hashes(what string) ([]ledger.SecureHash, error) {
	n, err := r.count(32, what)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]ledger.SecureHash, n)
	for i := range out {
		b, err := r.take(32, what)
		if err != nil {
			return nil, err
		}
		copy(out[i][:], b)
	}
	return out, nil
}

func (w *Witness) UnmarshalBinary(b []byte) error {
	r := &reader{b: b}
	ver, err := r.u16("version")
	if err != nil {
		return err
	}
	if ver != Version {
		return malformed("version %d", ver)
	}
	var out Witness
	if out.Outputs, err = r.fields("outputs"); err != nil {
		return err
	}
	for _, dst := range []struct {
		p    *[][]byte
		name string
	}{
		{&out.Commands, "commands"},
		{&out.Attachments, "attachments"},
		{&out.Notary, "notary"},
		{&out.TimeWindow, "timewindow"},
		{&out.Signers, "signers"},
		{&out.Parameters, "parameters"},
	} {
		if *dst.p, err = r.components(dst.name); err != nil {
			return err
		}
	}
	salt, err := r.take(32, "salt")
	if err != nil {
		return err
	}
	copy(out.PrivacySalt[:], salt)
	if out.Inputs, err = r.components("inputs"); err != nil {
		return err
	}
	if out.InputUtxos, err = r.fields("input utxos"); err != nil {
		return err
	}
	if out.ReferenceUtxos, err = r.fields("reference utxos"); err != nil {
		return err
	}
	if out.InputNonces, err = r.hashes("input nonces"); err != nil {
		return err
	}
	if out.ReferenceNonces, err = r.hashes("reference nonces"); err != nil {
		return err
	}
	if r.off != len(b) {
		return malformed("%d trailing bytes", len(b)-r.off)
	}
	*w = out
	return nil
}
