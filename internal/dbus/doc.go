// Package dbus implements the messaging menu D-Bus interfaces.
// It provides the broker object (com.canonical.indicator.messages.service)
// that applications register with, a proxy clients use to call it, the
// per-application object that publishes message sources, and helpers for
// following bus name ownership.
package dbus
