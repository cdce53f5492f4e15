// Package kvstore persists small integers and blobs by namespace and key.
//
// Every Store call opens the namespace, performs one operation, commits
// and closes, so each write is atomic at the backend's commit boundary.
// Entries carry a type tag: loading a value with a different type than it
// was saved with fails with errcode.TypeMismatch instead of reinterpreting
// the bytes.
package kvstore

import (
	"log/slog"
	"sort"

	"nodestatus-go/errcode"
	"nodestatus-go/logging"
)

// MaxKeyLen bounds keys and namespace names.
const MaxKeyLen = 15

// Kind tags a stored value.
type Kind uint8

const (
	KindU8 Kind = iota + 1
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindBlob
)

var kindNames = [...]string{"", "u8", "i8", "u16", "i16", "u32", "i32", "u64", "i64", "blob"}

func (k Kind) String() string {
	if int(k) < len(kindNames) && k != 0 {
		return kindNames[k]
	}
	return "unknown"
}

func parseKind(s string) (Kind, bool) {
	for k := KindU8; k <= KindBlob; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// Entry is one tagged value. Integers are held as their 64-bit two's
// complement bit pattern.
type Entry struct {
	Kind Kind
	Bits uint64
	Blob []byte
}

// Backend is the platform storage service.
type Backend interface {
	Open(namespace string, writable bool) (Handle, error)
}

// Handle is an open namespace. Writes are staged until Commit; Close
// discards anything uncommitted.
type Handle interface {
	Get(key string) (Entry, error)
	Set(key string, e Entry) error
	Erase(key string) error
	Keys() ([]string, error)
	Commit() error
	Close() error
}

// Store is the per-namespace view used by the rest of the firmware.
type Store struct {
	b   Backend
	ns  string
	log *slog.Logger
}

// New binds a Store to namespace on b.
func New(b Backend, namespace string) (*Store, error) {
	if err := checkName("kvstore.new", namespace); err != nil {
		return nil, err
	}
	return &Store{b: b, ns: namespace, log: logging.GetLogger("kvstore").With("ns", namespace)}, nil
}

func (s *Store) Namespace() string { return s.ns }

func checkName(op, name string) error {
	if len(name) == 0 || len(name) > MaxKeyLen {
		return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "name must be 1-15 bytes: " + name}
	}
	return nil
}

func (s *Store) write(op, key string, fn func(Handle) error) error {
	if err := checkName(op, key); err != nil {
		return err
	}
	h, err := s.b.Open(s.ns, true)
	if err != nil {
		return errcode.Wrap(op, err)
	}
	defer h.Close()
	if err := fn(h); err != nil {
		return errcode.Wrap(op, err)
	}
	if err := h.Commit(); err != nil {
		s.log.Warn("commit failed", "op", op, "key", key, "err", err)
		return errcode.Wrap(op, err)
	}
	return nil
}

func (s *Store) get(op, key string) (Entry, error) {
	if err := checkName(op, key); err != nil {
		return Entry{}, err
	}
	h, err := s.b.Open(s.ns, false)
	if err != nil {
		return Entry{}, errcode.Wrap(op, err)
	}
	defer h.Close()
	e, err := h.Get(key)
	if err != nil {
		return Entry{}, errcode.Wrap(op, err)
	}
	return e, nil
}

// SaveBlob stores a copy of data. Empty data is rejected.
func (s *Store) SaveBlob(key string, data []byte) error {
	if len(data) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "kvstore.save_blob", Msg: "empty blob"}
	}
	e := Entry{Kind: KindBlob, Blob: append([]byte(nil), data...)}
	return s.write("kvstore.save_blob", key, func(h Handle) error { return h.Set(key, e) })
}

// LoadBlob copies the blob under key into buf and returns its length. If
// buf is too short nothing is copied and the required length is returned
// with errcode.BufferTooSmall.
func (s *Store) LoadBlob(key string, buf []byte) (int, error) {
	e, err := s.get("kvstore.load_blob", key)
	if err != nil {
		return 0, err
	}
	if e.Kind != KindBlob {
		return 0, &errcode.E{C: errcode.TypeMismatch, Op: "kvstore.load_blob", Msg: key + " is " + e.Kind.String()}
	}
	if len(buf) < len(e.Blob) {
		return len(e.Blob), &errcode.E{C: errcode.BufferTooSmall, Op: "kvstore.load_blob", Msg: key}
	}
	return copy(buf, e.Blob), nil
}

// Exists reports whether key holds a value of any kind.
func (s *Store) Exists(key string) bool {
	_, err := s.get("kvstore.exists", key)
	return err == nil
}

// Erase removes key; a missing key yields errcode.NotFound.
func (s *Store) Erase(key string) error {
	return s.write("kvstore.erase", key, func(h Handle) error { return h.Erase(key) })
}

// Kind returns the tag of the value stored under key.
func (s *Store) Kind(key string) (Kind, error) {
	e, err := s.get("kvstore.kind", key)
	return e.Kind, err
}

// Keys lists the namespace's keys in order.
func (s *Store) Keys() ([]string, error) {
	h, err := s.b.Open(s.ns, false)
	if err != nil {
		return nil, errcode.Wrap("kvstore.keys", err)
	}
	defer h.Close()
	keys, err := h.Keys()
	if err != nil {
		return nil, errcode.Wrap("kvstore.keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}
