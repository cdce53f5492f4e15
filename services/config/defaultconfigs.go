package config

// Embedded per-board configuration. Key: board name.

const cfgDefault = `
board = "default"

[led]
pin = 8
queue_depth = 4

[button]
pin = 9
active_low = true
poll_ms = 100
feedback_ms = 1000
network_reset_ms = 3000
full_reset_ms = 10000

[log]
level = "info"
format = "text"
`

const cfgPico = `
board = "pico"

[led]
pin = 16
queue_depth = 4

[button]
pin = 15
active_low = true
poll_ms = 100
feedback_ms = 1000
network_reset_ms = 3000
full_reset_ms = 10000

[log]
level = "info"
format = "text"
`

const cfgXiaoRP2040 = `
board = "xiao-rp2040"

[led]
pin = 12
queue_depth = 4

[button]
pin = 26
active_low = true
poll_ms = 100
feedback_ms = 1000
network_reset_ms = 3000
full_reset_ms = 10000

[log]
level = "debug"
format = "text"
`

var embeddedConfigs = map[string][]byte{
	"default":     []byte(cfgDefault),
	"pico":        []byte(cfgPico),
	"xiao-rp2040": []byte(cfgXiaoRP2040),
}
