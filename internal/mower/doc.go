// Package mower runs request/response sessions with a robotic mower over a
// transport.
//
// A Client owns one transport and one protocol.Decoder. Requests are
// serialised: the protocol has no request ids beyond the session channel, so
// only one request may be outstanding.
//
//	tr, _ := transport.New(transport.Options{Kind: "websocket", BridgeURL: url, Address: addr})
//	client, err := mower.NewClient(tr, mower.WithRetries(3))
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	model, err := client.Model(ctx)
//	level, err := client.BatteryLevel(ctx)
//
// Transport failures, checksum mismatches and short frames are retried with
// exponential backoff. Model also switches the session to the brand's state
// numbering, so call it before State.
package mower
