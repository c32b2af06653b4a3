// Package config loads and validates the daemon configuration and runs the
// gateway setup flow.
//
// Configuration is layered: built-in defaults, then the YAML file, then
// FLEXISMART_* environment variables. Secrets (MQTT password, InfluxDB
// token) are best set through the environment; files written by Save are
// created with mode 0600.
//
//	cfg, err := config.Load("flexismart.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Gateway.Host)
package config
