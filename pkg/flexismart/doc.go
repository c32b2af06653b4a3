// Package flexismart provides a client for communicating with
// Thermotec AeroFlow FlexiSmart heating gateways over UDP.
//
// # Basic Usage
//
//	ctx := context.Background()
//	client, err := flexismart.NewClient(ctx, "192.168.1.60")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	gw, err := client.GetGatewayData(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, zone := range gw.Zones {
//	    n, _ := client.GetModuleCount(ctx, zone)
//	    fmt.Println(zone, n)
//	}
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := flexismart.NewClient(ctx, "192.168.1.60",
//	    flexismart.WithPort(6653),
//	    flexismart.WithRequestTimeout(20*time.Second),
//	    flexismart.WithLogger(slog.Default()),
//	)
//
// # Errors
//
// Failed requests can be classified with errors.Is against
// ErrRequestTimeout, ErrInvalidResponse and ErrInvalidRequest.
//
// # Protocol
//
// The frame layout is this package's own convention, not the vendor's wire
// protocol, which is not published. A real FlexiSmart gateway will not
// understand these packets; the client talks to peers that implement the
// same framing, such as the fake gateway in the tests.
//
// Every datagram carries one packet: the header bytes 0x54 0x46, a message
// id, a command, a big-endian data length, the data and a CRC16/Modbus
// checksum. Responses start with a status byte. The default port is 6653.
package flexismart
