package ledger

import (
	"encoding/binary"
	"fmt"
)

// txReader walks the binary form of a WireTransaction. Errors name the
// field being read.
type txReader struct {
	b   []byte
	off int
}

func (r *txReader) next(n int, field string) ([]byte, error) {
	if n < 0 || n > len(r.b)-r.off {
		return nil, txerr(TX_ERR_PARSE, fmt.Sprintf("%s: need %d bytes at offset %d, have %d", field, n, r.off, len(r.b)-r.off))
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *txReader) version() (uint16, error) {
	b, err := r.next(2, "version")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// digestName reads the u8-prefixed digest service name.
func (r *txReader) digestName() (string, error) {
	n, err := r.next(1, "digest name length")
	if err != nil {
		return "", err
	}
	name, err := r.next(int(n[0]), "digest name")
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func (r *txReader) salt() (PrivacySalt, error) {
	var s PrivacySalt
	b, err := r.next(len(s), "privacy salt")
	if err != nil {
		return s, err
	}
	copy(s[:], b)
	return s, nil
}

// group reads u32 count | count x (u32 len | bytes). Every component carries
// at least its length prefix, which bounds count against the input.
func (r *txReader) group(g ComponentGroup) ([][]byte, error) {
	b, err := r.next(4, g.String()+" count")
	if err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(b)
	if uint64(count)*4 > uint64(len(r.b)-r.off) {
		return nil, txerr(TX_ERR_PARSE, fmt.Sprintf("%s count %d overflows input", g, count))
	}
	if count == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		field := fmt.Sprintf("%s[%d]", g, i)
		lb, err := r.next(4, field+" length")
		if err != nil {
			return nil, err
		}
		c, err := r.next(int(binary.LittleEndian.Uint32(lb)), field)
		if err != nil {
			return nil, err
		}
		out = append(out, append([]byte(nil), c...))
	}
	return out, nil
}

func (r *txReader) done() error {
	if rest := len(r.b) - r.off; rest != 0 {
		return txerr(TX_ERR_TRAILING_DATA, fmt.Sprintf("%d bytes", rest))
	}
	return nil
}
