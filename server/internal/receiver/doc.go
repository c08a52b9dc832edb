// Package receiver subscribes to station readings over MQTT.
//
// Devices publish the same JSON body accepted by POST /api/v1/ingest to
// buoys/{station}/readings. The station id in the topic overrides any
// buoy_id in the body. The client reconnects automatically and resubscribes
// on every connect.
package receiver
