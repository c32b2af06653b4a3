// Package mqtt bridges the gateway to Home Assistant over MQTT.
//
// Client wraps paho.mqtt.golang: it connects with a last will on the
// bridge availability topic, reconnects on its own and restores
// subscriptions after a reconnect.
//
// Bridge publishes Home Assistant discovery configs, retained JSON state
// and per-entity availability for every heater module and the gateway,
// and turns messages on the command topics into gateway commands.
//
// Topic layout, with the default base topic "flexismart":
//
//	flexismart/bridge/availability            online | offline
//	flexismart/heater/<zone>_<module>/state   climate JSON
//	flexismart/heater/<zone>_<module>/availability
//	flexismart/heater/<zone>_<module>/set/<command>
//	flexismart/gateway/state
//	flexismart/gateway/availability
//	flexismart/gateway/update_date_time
package mqtt
