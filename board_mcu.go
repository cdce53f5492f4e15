//go:build tinygo

package main

import (
	"machine"
	"time"

	"nodestatus-go/services/kvstore"
	"nodestatus-go/types"
)

const bootDelay = 2 * time.Second

func buttonPin(n int) machine.Pin {
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return p
}

// openBackend keeps the store in RAM; boards here have no filesystem.
func openBackend(types.StorageConfig) (kvstore.Backend, error) {
	return kvstore.NewMemBackend(), nil
}
