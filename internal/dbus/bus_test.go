package dbus

import (
	"bufio"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

// privateBus starts a dbus-daemon for the test and returns its address.
// Without dbus-daemon the test is skipped, or failed when CI is set.
func privateBus(t *testing.T) string {
	t.Helper()

	daemon, err := exec.LookPath("dbus-daemon")
	if err != nil {
		if os.Getenv("CI") != "" {
			t.Fatalf("dbus-daemon is required in CI: %v", err)
		}
		t.Skip("dbus-daemon not installed")
	}

	cmd := exec.Command(daemon,
		"--session",
		"--nofork",
		"--nopidfile",
		"--print-address=1",
		"--address=unix:dir="+t.TempDir(),
	)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(stdout).ReadString('\n')
		lines <- strings.TrimSpace(line)
	}()

	select {
	case addr := <-lines:
		require.NotEmpty(t, addr, "dbus-daemon did not print its address")
		return addr
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dbus-daemon")
		return ""
	}
}

// busConn opens a connection to addr that is closed with the test.
func busConn(t *testing.T, addr string) *dbus.Conn {
	t.Helper()
	conn, err := Connect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// brokerCall is one call received by a recordingBroker.
type brokerCall struct {
	Sender string
	Args   []string
}

// recordingBroker is a stand-in broker service that records the
// registration calls it receives.
type recordingBroker struct {
	mu    sync.Mutex
	calls map[string][]brokerCall
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{calls: make(map[string][]brokerCall)}
}

// serve exports b on conn and claims name.
func (b *recordingBroker) serve(t *testing.T, conn *dbus.Conn, name string) {
	t.Helper()
	require.NoError(t, conn.Export(b, ServicePath, ServiceInterface))
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	require.NoError(t, err)
	require.Equal(t, dbus.RequestNameReplyPrimaryOwner, reply)
}

func (b *recordingBroker) record(method string, sender dbus.Sender, args ...string) *dbus.Error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[method] = append(b.calls[method], brokerCall{Sender: string(sender), Args: args})
	return nil
}

func (b *recordingBroker) RegisterApplication(sender dbus.Sender, appID string, menuPath dbus.ObjectPath) *dbus.Error {
	return b.record("RegisterApplication", sender, appID, string(menuPath))
}

func (b *recordingBroker) UnregisterApplication(sender dbus.Sender, appID string) *dbus.Error {
	return b.record("UnregisterApplication", sender, appID)
}

func (b *recordingBroker) ApplicationStoppedRunning(sender dbus.Sender, appID string) *dbus.Error {
	return b.record("ApplicationStoppedRunning", sender, appID)
}

func (b *recordingBroker) SetStatus(sender dbus.Sender, appID, status string) *dbus.Error {
	return b.record("SetStatus", sender, appID, status)
}

// Calls returns the recorded calls of method.
func (b *recordingBroker) Calls(method string) []brokerCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]brokerCall(nil), b.calls[method]...)
}
