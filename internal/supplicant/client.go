package supplicant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StateCompleted is the wpa_state reported once association and
// authentication have finished.
const StateCompleted = "COMPLETED"

// AttrIDStr is the network attribute holding the profile name.
const AttrIDStr = "id_str"

var (
	// ErrControlChannel matches every failed supplicant command.
	ErrControlChannel = errors.New("supplicant control channel error")
	// ErrNoAttribute is returned by NetworkAttr when the attribute is unset.
	ErrNoAttribute = errors.New("network attribute not set")
)

// Network is one configured network entry as reported by the supplicant.
// Flag strings are decoded here and never leave this package.
type Network struct {
	ID       int
	SSID     string
	BSSID    string
	Current  bool // currently associated
	Disabled bool
}

// Client is a control channel to the supplicant instance of one interface
type Client interface {
	Interface() string
	ListNetworks(ctx context.Context) ([]Network, error)
	// NetworkAttr returns the raw (possibly quoted) value of a network attribute
	NetworkAttr(ctx context.Context, id int, attr string) (string, error)
	SelectNetwork(ctx context.Context, id int) error
	EnableNetwork(ctx context.Context, id int) error
	EnableAll(ctx context.Context) error
	DisableNetwork(ctx context.Context, id int) error
	DisableAll(ctx context.Context) error
	Reassociate(ctx context.Context) error
	State(ctx context.Context) (string, error)
	Close() error
}

// Dialer opens a Client for an interface
type Dialer func(ctx context.Context, iface string) (Client, error)

// CommandError describes a failed control channel command
type CommandError struct {
	Interface string
	Command   string
	Err       error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Interface, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is makes every CommandError match ErrControlChannel.
func (e *CommandError) Is(target error) bool {
	return target == ErrControlChannel
}

func commandError(iface, command string, err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return err
	}
	return &CommandError{Interface: iface, Command: command, Err: err}
}

// Unquote strips one level of double quotes from an attribute value.
// Values that are not quoted strings (hex-encoded ssids, "FAIL") yield ok=false.
func Unquote(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", false
	}
	if s, err := strconv.Unquote(raw); err == nil {
		return s, true
	}
	return raw[1 : len(raw)-1], true
}
