package types

// NodeConfig is the complete firmware configuration for one board.
type NodeConfig struct {
	Board   string        `toml:"board"`
	LED     LEDConfig     `toml:"led"`
	Button  ButtonConfig  `toml:"button"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

type LEDConfig struct {
	Pin        int `toml:"pin"`
	QueueDepth int `toml:"queue_depth"`
}

type ButtonConfig struct {
	Pin            int    `toml:"pin"` // <0 disables the poller
	ActiveLow      bool   `toml:"active_low"`
	PollMs         uint32 `toml:"poll_ms"`
	FeedbackMs     uint32 `toml:"feedback_ms"`
	NetworkResetMs uint32 `toml:"network_reset_ms"`
	FullResetMs    uint32 `toml:"full_reset_ms"`
}

type StorageConfig struct {
	Dir string `toml:"dir"` // host only; empty keeps the store in memory
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
