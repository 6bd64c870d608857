// Package daemon provides the main orchestration for msgmenud.
// It coordinates the bus connection, the registration registry, the broker
// server, the peer watcher, and configuration hot-reload.
package daemon
