package supplicant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCtrlDir is where wpa_supplicant creates its per-interface sockets
	DefaultCtrlDir = "/run/wpa_supplicant"

	ctrlTimeout   = 10 * time.Second
	ctrlReplySize = 16384
)

var ctrlCounter atomic.Uint64

// CtrlClient speaks the wpa_ctrl datagram protocol used by wpa_cli
type CtrlClient struct {
	iface  string
	remote string
	conn   *net.UnixConn
	local  string
	logger *zap.Logger
}

// CtrlDialer returns a Dialer for sockets under dir
func CtrlDialer(dir string, logger *zap.Logger) Dialer {
	return func(ctx context.Context, iface string) (Client, error) {
		return DialCtrl(ctx, dir, iface, logger)
	}
}

// DialCtrl connects to <dir>/<iface>. The client binds its own socket in the
// temp dir, the supplicant replies to that address.
func DialCtrl(ctx context.Context, dir, iface string, logger *zap.Logger) (*CtrlClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = DefaultCtrlDir
	}

	remote := filepath.Join(dir, iface)
	conn, local, err := bindCtrl(remote)
	if err != nil {
		return nil, commandError(iface, "connect", err)
	}

	return &CtrlClient{
		iface:  iface,
		remote: remote,
		conn:   conn,
		local:  local,
		logger: logger.Named("ctrl").With(zap.String("interface", iface)),
	}, nil
}

func bindCtrl(remote string) (*net.UnixConn, string, error) {
	local := filepath.Join(os.TempDir(), fmt.Sprintf("wpa_ctrl_%d-%d", os.Getpid(), ctrlCounter.Add(1)))
	laddr := &net.UnixAddr{Name: local, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: remote, Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		os.Remove(local)
		return nil, "", err
	}
	return conn, local, nil
}

// rebind moves the client to a fresh local socket. A reply to an abandoned
// command then goes to the old address instead of answering the next one.
func (c *CtrlClient) rebind() {
	c.conn.Close()
	os.Remove(c.local)

	conn, local, err := bindCtrl(c.remote)
	if err != nil {
		c.logger.Warn("failed to rebind control socket", zap.Error(err))
		c.conn, c.local = nil, ""
		return
	}
	c.conn, c.local = conn, local
}

// Interface returns the interface name the client is bound to
func (c *CtrlClient) Interface() string { return c.iface }

// Close closes the socket and removes the local socket file
func (c *CtrlClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	os.Remove(c.local)
	return err
}

// request sends one command and returns the reply, skipping unsolicited
// event messages ("<N>...") that arrive on attached sockets.
func (c *CtrlClient) request(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", commandError(c.iface, cmd, err)
	}
	if c.conn == nil {
		return "", commandError(c.iface, cmd, net.ErrClosed)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(ctrlTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", commandError(c.iface, cmd, err)
	}

	c.logger.Debug("ctrl request", zap.String("command", cmd))
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", commandError(c.iface, cmd, err)
	}

	buf := make([]byte, ctrlReplySize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			c.rebind()
			return "", commandError(c.iface, cmd, err)
		}
		reply := string(buf[:n])
		if strings.HasPrefix(reply, "<") {
			continue
		}
		return reply, nil
	}
}

// command runs a command that answers OK or FAIL
func (c *CtrlClient) command(ctx context.Context, cmd string) error {
	reply, err := c.request(ctx, cmd)
	if err != nil {
		return err
	}
	return checkReply(c.iface, cmd, reply)
}

func checkReply(iface, cmd, reply string) error {
	switch trimmed := strings.TrimSpace(reply); {
	case trimmed == "OK":
		return nil
	case trimmed == "FAIL", strings.HasPrefix(trimmed, "FAIL-"):
		return commandError(iface, cmd, errors.New("command failed"))
	case trimmed == "UNKNOWN COMMAND":
		return commandError(iface, cmd, errors.New("unknown command"))
	default:
		return commandError(iface, cmd, fmt.Errorf("unexpected reply %q", trimmed))
	}
}

// ListNetworks issues LIST_NETWORKS
func (c *CtrlClient) ListNetworks(ctx context.Context) ([]Network, error) {
	reply, err := c.request(ctx, "LIST_NETWORKS")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply) == "FAIL" {
		return nil, commandError(c.iface, "LIST_NETWORKS", errors.New("command failed"))
	}
	return ParseNetworkList(reply)
}

// NetworkAttr issues GET_NETWORK <id> <attr>
func (c *CtrlClient) NetworkAttr(ctx context.Context, id int, attr string) (string, error) {
	cmd := fmt.Sprintf("GET_NETWORK %d %s", id, attr)
	reply, err := c.request(ctx, cmd)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "FAIL" {
		return "", ErrNoAttribute
	}
	return strings.TrimRight(reply, "\n"), nil
}

// SelectNetwork issues SELECT_NETWORK <id>
func (c *CtrlClient) SelectNetwork(ctx context.Context, id int) error {
	return c.command(ctx, "SELECT_NETWORK "+strconv.Itoa(id))
}

// EnableNetwork issues ENABLE_NETWORK <id>
func (c *CtrlClient) EnableNetwork(ctx context.Context, id int) error {
	return c.command(ctx, "ENABLE_NETWORK "+strconv.Itoa(id))
}

// EnableAll issues ENABLE_NETWORK all
func (c *CtrlClient) EnableAll(ctx context.Context) error {
	return c.command(ctx, "ENABLE_NETWORK all")
}

// DisableNetwork issues DISABLE_NETWORK <id>
func (c *CtrlClient) DisableNetwork(ctx context.Context, id int) error {
	return c.command(ctx, "DISABLE_NETWORK "+strconv.Itoa(id))
}

// DisableAll issues DISABLE_NETWORK all
func (c *CtrlClient) DisableAll(ctx context.Context) error {
	return c.command(ctx, "DISABLE_NETWORK all")
}

// Reassociate issues REASSOCIATE
func (c *CtrlClient) Reassociate(ctx context.Context) error {
	return c.command(ctx, "REASSOCIATE")
}

// State issues STATUS and returns the wpa_state field
func (c *CtrlClient) State(ctx context.Context) (string, error) {
	reply, err := c.request(ctx, "STATUS")
	if err != nil {
		return "", err
	}
	state, ok := ParseStatus(reply)["wpa_state"]
	if !ok {
		return "", commandError(c.iface, "STATUS", errors.New("no wpa_state in reply"))
	}
	return state, nil
}
