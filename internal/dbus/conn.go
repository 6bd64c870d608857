package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Connect opens a private connection to the bus at address, or to the
// session bus when address is empty. The caller closes it.
func Connect(address string) (*dbus.Conn, error) {
	if address == "" {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return conn, nil
	}

	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus %s: %w", address, err)
	}
	return conn, nil
}
