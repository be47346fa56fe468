// Package discovery finds BLE bridges on the local network over mDNS.
//
// A bridge is a small device within Bluetooth range of the mower that relays
// BLE notifications over a websocket. Bridges advertise the
// "_automower-bridge._tcp" service; the optional "path" TXT record names the
// websocket endpoint and "tls=1" selects wss://.
//
// # Usage Example
//
//	bridges, err := discovery.ScanForBridges(ctx, 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range bridges {
//	    fmt.Println(b, b.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridges must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
