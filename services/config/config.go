// Package config resolves the node configuration from the embedded board
// documents plus optional TOML overlays, and publishes it on the bus.
package config

import (
	"context"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"nodestatus-go/bus"
	"nodestatus-go/errcode"
	"nodestatus-go/logging"
	"nodestatus-go/types"
)

const configPrefix = "config"

// TopicNode carries the whole resolved config, retained.
var TopicNode = bus.T(configPrefix, "node")

// EmbeddedConfigLookup allows overriding how board configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Boards lists the embedded board names.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load returns the embedded config for board.
func Load(board string) (types.NodeConfig, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return types.NodeConfig{}, &errcode.E{C: errcode.NotFound, Op: "config.load", Msg: "no embedded config for board: " + board}
	}
	var cfg types.NodeConfig
	if err := Overlay(&cfg, raw); err != nil {
		return types.NodeConfig{}, err
	}
	if cfg.Board == "" {
		cfg.Board = board
	}
	return cfg, nil
}

// Overlay decodes a TOML document over cfg; keys it does not mention keep
// their current values.
func Overlay(cfg *types.NodeConfig, raw []byte) error {
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return &errcode.E{C: errcode.InvalidPayload, Op: "config.overlay", Err: err}
	}
	return nil
}

// Validate checks pin numbers and that the button thresholds increase.
func Validate(cfg types.NodeConfig) error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.validate", Msg: msg}
	}
	if cfg.LED.Pin < 0 {
		return bad("led.pin must be >= 0")
	}
	if cfg.LED.QueueDepth < 0 {
		return bad("led.queue_depth must be >= 0")
	}
	b := cfg.Button
	if b.Pin >= 0 && b.Pin == cfg.LED.Pin {
		return bad("button.pin and led.pin collide")
	}
	if b.FeedbackMs >= b.NetworkResetMs || b.NetworkResetMs >= b.FullResetMs {
		return bad("button thresholds must satisfy feedback < network_reset < full_reset")
	}
	return nil
}

// Service publishes the resolved config, retained, at startup.
type Service struct {
	cfg types.NodeConfig
}

func NewService(cfg types.NodeConfig) *Service {
	return &Service{cfg: cfg}
}

// Start publishes config/node and one retained message per section
// (config/led, config/button, config/storage, config/log).
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	log := logging.GetLogger("config")
	conn.Publish(conn.NewMessage(TopicNode, s.cfg, true))
	sections := map[string]any{
		"led":     s.cfg.LED,
		"button":  s.cfg.Button,
		"storage": s.cfg.Storage,
		"log":     s.cfg.Log,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	log.Info("config published", "board", s.cfg.Board)
}
