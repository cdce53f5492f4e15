//go:build tinygo && !rp2040 && !rp2350

package logging

import (
	"io"
	"machine"
	"sync"
)

var (
	consoleOnce sync.Once
	console     io.Writer
)

func platformOutput() io.Writer {
	consoleOnce.Do(func() {
		console = NewAsyncWriter(machine.Serial, 1024)
	})
	return console
}
