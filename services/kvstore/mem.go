package kvstore

import (
	"sync"

	"nodestatus-go/errcode"
)

// MemBackend keeps namespaces in RAM. It is the store on boards without a
// flash filesystem and the default in tests.
type MemBackend struct {
	mu  sync.Mutex
	nss map[string]map[string]Entry
}

var _ Backend = (*MemBackend)(nil)

func NewMemBackend() *MemBackend {
	return &MemBackend{nss: map[string]map[string]Entry{}}
}

func (m *MemBackend) Open(ns string, writable bool) (Handle, error) {
	if err := checkName("kvstore.open", ns); err != nil {
		return nil, err
	}
	return &stagedHandle{
		writable: writable,
		load: func(key string) (Entry, bool) {
			m.mu.Lock()
			defer m.mu.Unlock()
			e, ok := m.nss[ns][key]
			return e, ok
		},
		keys: func() []string {
			m.mu.Lock()
			defer m.mu.Unlock()
			out := make([]string, 0, len(m.nss[ns]))
			for k := range m.nss[ns] {
				out = append(out, k)
			}
			return out
		},
		apply: func(staged map[string]*Entry) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			cur := m.nss[ns]
			if cur == nil {
				cur = map[string]Entry{}
				m.nss[ns] = cur
			}
			for k, e := range staged {
				if e == nil {
					delete(cur, k)
				} else {
					cur[k] = *e
				}
			}
			return nil
		},
	}, nil
}

// stagedHandle buffers writes over a committed view; a nil staged entry is
// a pending erase.
type stagedHandle struct {
	writable bool
	closed   bool
	staged   map[string]*Entry
	load     func(key string) (Entry, bool)
	keys     func() []string
	apply    func(map[string]*Entry) error
}

func (h *stagedHandle) lookup(key string) (Entry, bool) {
	if e, ok := h.staged[key]; ok {
		if e == nil {
			return Entry{}, false
		}
		return *e, true
	}
	return h.load(key)
}

func (h *stagedHandle) Get(key string) (Entry, error) {
	if h.closed {
		return Entry{}, errcode.Closed
	}
	e, ok := h.lookup(key)
	if !ok {
		return Entry{}, errcode.NotFound
	}
	e.Blob = append([]byte(nil), e.Blob...)
	return e, nil
}

func (h *stagedHandle) stage(key string, e *Entry) error {
	switch {
	case h.closed:
		return errcode.Closed
	case !h.writable:
		return &errcode.E{C: errcode.Unsupported, Msg: "read-only handle"}
	}
	if h.staged == nil {
		h.staged = map[string]*Entry{}
	}
	h.staged[key] = e
	return nil
}

func (h *stagedHandle) Set(key string, e Entry) error {
	e.Blob = append([]byte(nil), e.Blob...)
	return h.stage(key, &e)
}

func (h *stagedHandle) Erase(key string) error {
	if _, ok := h.lookup(key); !ok && !h.closed {
		return errcode.NotFound
	}
	return h.stage(key, nil)
}

func (h *stagedHandle) Keys() ([]string, error) {
	if h.closed {
		return nil, errcode.Closed
	}
	set := map[string]bool{}
	for _, k := range h.keys() {
		set[k] = true
	}
	for k, e := range h.staged {
		set[k] = e != nil
	}
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (h *stagedHandle) Commit() error {
	if h.closed {
		return errcode.Closed
	}
	if len(h.staged) == 0 {
		return nil
	}
	if err := h.apply(h.staged); err != nil {
		return err
	}
	h.staged = nil
	return nil
}

func (h *stagedHandle) Close() error {
	h.closed = true
	h.staged = nil
	return nil
}
