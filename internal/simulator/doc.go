// Package simulator implements a websocket BLE bridge with a simulated mower
// behind it.
//
// The bridge speaks the same protocol as a real one: a client opens a
// websocket with an "address" query parameter, sends binary request frames
// and receives each response split into MTU-sized binary messages, the way
// BLE notifications arrive. The Mower answers the known command ids with
// well-formed frames on the request's channel and drops anything else.
//
// Override-mow and park requests change the simulated state, and Step drains
// or charges the battery so a dashboard has something to show.
//
// # Usage Example
//
//	m, err := simulator.NewMower([2]byte{0x17, 0x01}, nil)
//	if err != nil {
//	    return err
//	}
//	srv := simulator.NewServer(simulator.Config{Port: 8080, Instance: "sim"}, m)
//	return srv.Start(ctx)
package simulator
