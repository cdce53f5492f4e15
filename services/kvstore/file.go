//go:build !tinygo

package kvstore

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"nodestatus-go/errcode"
)

// FileBackend stores each namespace as a TOML document in dir:
//
//	[boot_count]
//	kind = "u32"
//	value = "17"
//
// Integers are decimal strings (TOML has no unsigned 64-bit integer),
// blobs are base64. Commit rewrites the whole file through a rename.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

var _ Backend = (*FileBackend)(nil)

type fileEntry struct {
	Kind  string `toml:"kind"`
	Value string `toml:"value"`
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "kvstore.file", Err: err}
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(ns string) string { return filepath.Join(f.dir, ns+".toml") }

func (f *FileBackend) readLocked(ns string) (map[string]Entry, error) {
	raw, err := os.ReadFile(f.path(ns))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "kvstore.file.read", Err: err}
	}
	var doc map[string]fileEntry
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "kvstore.file.read", Msg: ns, Err: err}
	}
	out := make(map[string]Entry, len(doc))
	for k, fe := range doc {
		e, err := decodeEntry(fe)
		if err != nil {
			return nil, &errcode.E{C: errcode.InvalidPayload, Op: "kvstore.file.read", Msg: ns + "." + k, Err: err}
		}
		out[k] = e
	}
	return out, nil
}

func decodeEntry(fe fileEntry) (Entry, error) {
	k, ok := parseKind(fe.Kind)
	if !ok {
		return Entry{}, errcode.TypeMismatch
	}
	if k == KindBlob {
		b, err := base64.StdEncoding.DecodeString(fe.Value)
		return Entry{Kind: k, Blob: b}, err
	}
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		v, err := strconv.ParseInt(fe.Value, 10, 64)
		return Entry{Kind: k, Bits: uint64(v)}, err
	}
	v, err := strconv.ParseUint(fe.Value, 10, 64)
	return Entry{Kind: k, Bits: v}, err
}

func encodeEntry(e Entry) fileEntry {
	fe := fileEntry{Kind: e.Kind.String()}
	switch e.Kind {
	case KindBlob:
		fe.Value = base64.StdEncoding.EncodeToString(e.Blob)
	case KindI8, KindI16, KindI32, KindI64:
		fe.Value = strconv.FormatInt(int64(e.Bits), 10)
	default:
		fe.Value = strconv.FormatUint(e.Bits, 10)
	}
	return fe
}

func (f *FileBackend) writeLocked(ns string, m map[string]Entry) error {
	doc := make(map[string]fileEntry, len(m))
	for k, e := range m {
		doc[k] = encodeEntry(e)
	}
	raw, err := toml.Marshal(doc)
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "kvstore.file.write", Err: err}
	}
	tmp := f.path(ns) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return &errcode.E{C: errcode.Error, Op: "kvstore.file.write", Err: err}
	}
	if err := os.Rename(tmp, f.path(ns)); err != nil {
		return &errcode.E{C: errcode.Error, Op: "kvstore.file.write", Err: err}
	}
	return nil
}

func (f *FileBackend) Open(ns string, writable bool) (Handle, error) {
	if err := checkName("kvstore.open", ns); err != nil {
		return nil, err
	}
	f.mu.Lock()
	snap, err := f.readLocked(ns)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &stagedHandle{
		writable: writable,
		load: func(key string) (Entry, bool) {
			e, ok := snap[key]
			return e, ok
		},
		keys: func() []string {
			out := make([]string, 0, len(snap))
			for k := range snap {
				out = append(out, k)
			}
			return out
		},
		apply: func(staged map[string]*Entry) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			cur, err := f.readLocked(ns)
			if err != nil {
				return err
			}
			for k, e := range staged {
				if e == nil {
					delete(cur, k)
				} else {
					cur[k] = *e
				}
			}
			if err := f.writeLocked(ns, cur); err != nil {
				return err
			}
			snap = cur
			return nil
		},
	}, nil
}
