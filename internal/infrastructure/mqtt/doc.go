// Package mqtt provides MQTT client connectivity for AquaSense Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Subscriptions to sensor reading topics, restored after reconnect
//   - Publishing actuator commands on the shared control topic
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// Sensor nodes in the tank publish one decimal reading per message.
// Core consumes those readings, and answers with "<device>_on" and
// "<device>_off" commands that the actuator nodes act on.
//
//	Sensor nodes → MQTT Broker → Core → MQTT Broker → Actuator nodes
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SubscribeAll(topics, client.QoS(), loop.HandleMessage)
//
//	err = client.Publish("aquarium/device/control", []byte("aerator_on"), client.QoS(), false)
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not on the
// local host; payloads are not otherwise protected.
package mqtt
