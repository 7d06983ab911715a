// Package mqtt provides MQTT client connectivity for the KPM33B bridge
// and config sender.
//
// This package manages:
//   - Blocking initial connect with exponential backoff (1s doubling to
//     a configurable cap, 60s by default)
//   - Message publishing with QoS and retained flags
//   - Topic subscriptions with wildcard support
//   - Re-subscription after the transport reconnects
//   - Topic builders for the data/discovery/command topic shapes
//
// # Architecture
//
// Each broker connection is one Client. The bridge and the config
// sender each hold two: one to the internal (meter-facing) broker and
// one to the central broker.
//
//	meters ↔ internal broker ↔ bridge / config sender ↔ central broker
//
// # Delivery model
//
// Each connection delivers inbound messages from its own goroutine, one
// message at a time in arrival order. Handlers that block (the config
// sender's ack wait) delay later messages on the same connection only;
// the two connections stay independent.
//
// # Usage
//
//	client := mqtt.New(cfg.InternalBroker, cfg.Reconnect)
//	client.SetLogger(log)
//	if err := client.Connect(ctx); err != nil {
//	    return err // only on context cancellation
//	}
//	defer client.Close()
package mqtt
