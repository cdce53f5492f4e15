//go:build !tinygo

package main

import (
	"nodestatus-go/services/kvstore"
	"nodestatus-go/types"
)

const bootDelay = 0

var boardName = "default"

// idlePin is a button that is never pressed.
type idlePin struct{ activeLow bool }

func (p idlePin) Get() bool { return p.activeLow }

func buttonPin(int) idlePin { return idlePin{activeLow: true} }

func openBackend(c types.StorageConfig) (kvstore.Backend, error) {
	if c.Dir == "" {
		return kvstore.NewMemBackend(), nil
	}
	return kvstore.NewFileBackend(c.Dir)
}
