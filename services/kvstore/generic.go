package kvstore

import (
	"golang.org/x/exp/constraints"

	"nodestatus-go/errcode"
)

// kindOf maps T to its tag. int and uint are stored at 64 bits.
func kindOf[T constraints.Integer]() Kind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return KindU8
	case int8:
		return KindI8
	case uint16:
		return KindU16
	case int16:
		return KindI16
	case uint32:
		return KindU32
	case int32:
		return KindI32
	case int, int64:
		return KindI64
	default:
		return KindU64
	}
}

// Save stores v under key, tagged with T's width and signedness.
func Save[T constraints.Integer](s *Store, key string, v T) error {
	e := Entry{Kind: kindOf[T](), Bits: uint64(v)}
	return s.write("kvstore.save", key, func(h Handle) error { return h.Set(key, e) })
}

// Load reads the value under key. It fails with errcode.NotFound when the
// key is absent and errcode.TypeMismatch when it was saved as another type.
func Load[T constraints.Integer](s *Store, key string) (T, error) {
	e, err := s.get("kvstore.load", key)
	if err != nil {
		return 0, err
	}
	if want := kindOf[T](); e.Kind != want {
		return 0, &errcode.E{C: errcode.TypeMismatch, Op: "kvstore.load", Msg: key + " is " + e.Kind.String() + ", not " + want.String()}
	}
	return T(e.Bits), nil
}
