package main

import (
	"context"
	"log/slog"
	"time"

	"nodestatus-go/bus"
	"nodestatus-go/errcode"
	"nodestatus-go/logging"
	"nodestatus-go/services/button"
	"nodestatus-go/services/config"
	"nodestatus-go/services/indicator"
	"nodestatus-go/services/kvstore"
	"nodestatus-go/services/netstate"
	"nodestatus-go/types"
)

const storeNamespace = "node"

// Keys cleared by a network reset; a full reset clears the namespace.
var networkKeys = []string{"pan_id", "channel", "net_key"}

// TopicNetCmd carries commands for the mesh stack ("leave", "factory_reset").
var TopicNetCmd = bus.T("net", "cmd")

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(bootDelay)

	cfg, err := config.Load(boardName)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		panic(err.Error())
	}
	logging.Initialize(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.GetLogger("main")
	log.Info("boot", "board", cfg.Board)

	ctx := context.Background()
	b := bus.NewBus(8)
	config.NewService(cfg).Start(ctx, b.NewConnection("config"))

	backend, err := openBackend(cfg.Storage)
	if err != nil {
		panic(err.Error())
	}
	store, err := kvstore.New(backend, storeNamespace)
	if err != nil {
		panic(err.Error())
	}
	log.Info("boot count", "n", bumpBootCount(store, log))

	// No indicator, no node: a failure here is fatal.
	ind, err := indicator.New(cfg.LED.Pin, indicator.WithQueueDepth(cfg.LED.QueueDepth))
	if err != nil {
		log.Error("indicator init failed", "err", err)
		panic(err.Error())
	}
	ind.SetState(types.StateNotJoined)
	netstate.New(ind).Start(ctx, b.NewConnection("netstate"))

	if cfg.Button.Pin >= 0 {
		conn := b.NewConnection("button")
		p := button.New(buttonPin(cfg.Button.Pin), buttonConfig(cfg.Button),
			button.OnFeedback(ind.SetFeedback),
			button.OnNetworkReset(func() { networkReset(store, conn, ind, log) }),
			button.OnFullReset(func() { fullReset(store, conn, ind, log) }),
		)
		p.Start(ctx)
	}

	select {}
}

func buttonConfig(c types.ButtonConfig) button.Config {
	ms := func(v uint32) time.Duration { return time.Duration(v) * time.Millisecond }
	return button.Config{
		PollInterval:      ms(c.PollMs),
		FeedbackAfter:     ms(c.FeedbackMs),
		NetworkResetAfter: ms(c.NetworkResetMs),
		FullResetAfter:    ms(c.FullResetMs),
		ActiveLow:         c.ActiveLow,
	}
}

// bumpBootCount increments and returns the persisted boot counter.
func bumpBootCount(s *kvstore.Store, log *slog.Logger) uint32 {
	n, err := kvstore.Load[uint32](s, "boot_count")
	if err != nil && errcode.Of(err) != errcode.NotFound {
		log.Warn("boot count unreadable, restarting at zero", "err", err)
	}
	n++
	if err := kvstore.Save(s, "boot_count", n); err != nil {
		log.Warn("boot count not saved", "err", err)
	}
	return n
}

type stateSetter interface {
	SetState(types.IndicatorState)
}

func networkReset(s *kvstore.Store, conn *bus.Connection, ind stateSetter, log *slog.Logger) {
	log.Info("network reset")
	for _, k := range networkKeys {
		if err := s.Erase(k); err != nil && errcode.Of(err) != errcode.NotFound {
			log.Warn("erase failed", "key", k, "err", err)
		}
	}
	conn.Publish(conn.NewMessage(TopicNetCmd, "leave", false))
	ind.SetState(types.StatePairing)
}

func fullReset(s *kvstore.Store, conn *bus.Connection, ind stateSetter, log *slog.Logger) {
	log.Info("full reset")
	keys, err := s.Keys()
	if err != nil {
		log.Warn("listing keys failed", "err", err)
	}
	for _, k := range keys {
		if err := s.Erase(k); err != nil {
			log.Warn("erase failed", "key", k, "err", err)
		}
	}
	conn.Publish(conn.NewMessage(TopicNetCmd, "factory_reset", false))
	ind.SetState(types.StateError)
}
