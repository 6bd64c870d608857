// Package client is the application side of the messaging menu protocol.
//
// An App announces an application to the broker, reports its chat status
// and publishes message sources. Every operation turns into exactly one
// outbound call, delivered in order by a per-App event loop. Releasing the
// handle with Close sends ApplicationStoppedRunning exactly once and waits
// for it to be delivered:
//
//	app, err := client.New(broker, "empathy.desktop")
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//
// With wraps the same pattern for callers that prefer a scoped callback.
package client
