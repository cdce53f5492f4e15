//go:build rp2040 || rp2350

package logging

import (
	"io"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

const consoleBaud = 115200

var (
	consoleOnce sync.Once
	console     io.Writer
)

// platformOutput logs to UART0 on the board's default console pins. Lines
// go through a ring so a slow UART never stalls a caller.
func platformOutput() io.Writer {
	consoleOnce.Do(func() {
		u := uartx.UART0
		_ = u.Configure(uartx.UARTConfig{
			BaudRate: consoleBaud,
			TX:       machine.UART0_TX_PIN,
			RX:       machine.UART0_RX_PIN,
		})
		console = NewAsyncWriter(u, 2048)
	})
	return console
}
