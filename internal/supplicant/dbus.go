package supplicant

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	WPAService     = "fi.w1.wpa_supplicant1"
	WPAPath        = "/fi/w1/wpa_supplicant1"
	InterfaceIface = "fi.w1.wpa_supplicant1.Interface"
	NetworkIface   = "fi.w1.wpa_supplicant1.Network"
)

// DBusClient drives one wpa_supplicant interface over its D-Bus API
type DBusClient struct {
	conn      *dbus.Conn
	iface     string
	ifacePath dbus.ObjectPath
	ownsConn  bool
	logger    *zap.Logger
}

// DBusDialer returns a Dialer that shares conn between clients. When conn is
// nil every client opens its own system bus connection.
func DBusDialer(conn *dbus.Conn, logger *zap.Logger) Dialer {
	return func(ctx context.Context, iface string) (Client, error) {
		return DialDBus(ctx, conn, iface, logger)
	}
}

// DialDBus resolves the interface object via fi.w1.wpa_supplicant1.GetInterface
func DialDBus(ctx context.Context, conn *dbus.Conn, iface string, logger *zap.Logger) (*DBusClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ownsConn := false
	if conn == nil {
		var err error
		conn, err = dbus.SystemBusPrivate()
		if err != nil {
			return nil, commandError(iface, "connect", fmt.Errorf("failed to connect to system bus: %w", err))
		}
		if err := conn.Auth(nil); err != nil {
			conn.Close()
			return nil, commandError(iface, "connect", err)
		}
		if err := conn.Hello(); err != nil {
			conn.Close()
			return nil, commandError(iface, "connect", err)
		}
		ownsConn = true
	}

	var ifacePath dbus.ObjectPath
	obj := conn.Object(WPAService, WPAPath)
	if err := obj.CallWithContext(ctx, WPAService+".GetInterface", 0, iface).Store(&ifacePath); err != nil {
		if ownsConn {
			conn.Close()
		}
		return nil, commandError(iface, "GetInterface", err)
	}

	return &DBusClient{
		conn:      conn,
		iface:     iface,
		ifacePath: ifacePath,
		ownsConn:  ownsConn,
		logger:    logger.Named("dbus").With(zap.String("interface", iface)),
	}, nil
}

// Interface returns the interface name the client is bound to
func (c *DBusClient) Interface() string { return c.iface }

// Close closes the bus connection if the client opened it
func (c *DBusClient) Close() error {
	if c.ownsConn {
		return c.conn.Close()
	}
	return nil
}

func (c *DBusClient) networkPath(id int) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/Networks/%d", c.ifacePath, id))
}

// networkID extracts the id from ".../Networks/<id>"
func networkID(p dbus.ObjectPath) (int, error) {
	return strconv.Atoi(path.Base(string(p)))
}

func (c *DBusClient) getProperty(ctx context.Context, objPath dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	obj := c.conn.Object(WPAService, objPath)
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, prop).Store(&v)
	return v, err
}

func (c *DBusClient) setEnabled(ctx context.Context, id int, enabled bool) error {
	obj := c.conn.Object(WPAService, c.networkPath(id))
	return obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Set", 0,
		NetworkIface, "Enabled", dbus.MakeVariant(enabled)).Err
}

func (c *DBusClient) networkPaths(ctx context.Context) ([]dbus.ObjectPath, error) {
	v, err := c.getProperty(ctx, c.ifacePath, InterfaceIface, "Networks")
	if err != nil {
		return nil, err
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("unexpected Networks type %s", v.Signature())
	}
	return paths, nil
}

func (c *DBusClient) networkProperties(ctx context.Context, p dbus.ObjectPath) (map[string]dbus.Variant, error) {
	v, err := c.getProperty(ctx, p, NetworkIface, "Properties")
	if err != nil {
		return nil, err
	}
	props, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected Properties type %s", v.Signature())
	}
	return props, nil
}

// ListNetworks reads Networks and CurrentNetwork, then each network's
// Enabled flag and ssid/bssid properties
func (c *DBusClient) ListNetworks(ctx context.Context) ([]Network, error) {
	paths, err := c.networkPaths(ctx)
	if err != nil {
		return nil, commandError(c.iface, "list networks", err)
	}

	var current dbus.ObjectPath
	if v, err := c.getProperty(ctx, c.ifacePath, InterfaceIface, "CurrentNetwork"); err == nil {
		current, _ = v.Value().(dbus.ObjectPath)
	}

	networks := make([]Network, 0, len(paths))
	for _, p := range paths {
		id, err := networkID(p)
		if err != nil {
			c.logger.Warn("skipping network with unexpected path", zap.String("path", string(p)))
			continue
		}

		net := Network{ID: id, Current: p == current}

		v, err := c.getProperty(ctx, p, NetworkIface, "Enabled")
		if err != nil {
			return nil, commandError(c.iface, "list networks", err)
		}
		if enabled, ok := v.Value().(bool); ok {
			net.Disabled = !enabled
		}

		if props, err := c.networkProperties(ctx, p); err == nil {
			net.SSID = stringProp(props, "ssid")
			net.BSSID = stringProp(props, "bssid")
		}
		networks = append(networks, net)
	}

	return networks, nil
}

func stringProp(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	if unquoted, ok := Unquote(s); ok {
		return unquoted
	}
	return s
}

// NetworkAttr reads one entry of the network's Properties dictionary
func (c *DBusClient) NetworkAttr(ctx context.Context, id int, attr string) (string, error) {
	props, err := c.networkProperties(ctx, c.networkPath(id))
	if err != nil {
		return "", commandError(c.iface, "get network "+attr, err)
	}
	v, ok := props[attr]
	if !ok {
		return "", ErrNoAttribute
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", ErrNoAttribute
	}
	// The dictionary may carry string values without the config quoting
	if _, quoted := Unquote(s); !quoted {
		s = strconv.Quote(s)
	}
	return s, nil
}

// SelectNetwork calls Interface.SelectNetwork
func (c *DBusClient) SelectNetwork(ctx context.Context, id int) error {
	obj := c.conn.Object(WPAService, c.ifacePath)
	err := obj.CallWithContext(ctx, InterfaceIface+".SelectNetwork", 0, c.networkPath(id)).Err
	return commandError(c.iface, fmt.Sprintf("select network %d", id), err)
}

// EnableNetwork sets Network.Enabled
func (c *DBusClient) EnableNetwork(ctx context.Context, id int) error {
	return commandError(c.iface, fmt.Sprintf("enable network %d", id), c.setEnabled(ctx, id, true))
}

// DisableNetwork clears Network.Enabled
func (c *DBusClient) DisableNetwork(ctx context.Context, id int) error {
	return commandError(c.iface, fmt.Sprintf("disable network %d", id), c.setEnabled(ctx, id, false))
}

// EnableAll sets Enabled on every network; the D-Bus API has no "all" target
func (c *DBusClient) EnableAll(ctx context.Context) error {
	return c.setAll(ctx, true)
}

// DisableAll clears Enabled on every network
func (c *DBusClient) DisableAll(ctx context.Context) error {
	return c.setAll(ctx, false)
}

func (c *DBusClient) setAll(ctx context.Context, enabled bool) error {
	command := "disable network all"
	if enabled {
		command = "enable network all"
	}

	paths, err := c.networkPaths(ctx)
	if err != nil {
		return commandError(c.iface, command, err)
	}

	var errs []error
	for _, p := range paths {
		id, err := networkID(p)
		if err != nil {
			continue
		}
		if err := c.setEnabled(ctx, id, enabled); err != nil {
			errs = append(errs, fmt.Errorf("network %d: %w", id, err))
		}
	}
	return commandError(c.iface, command, errors.Join(errs...))
}

// Reassociate calls Interface.Reassociate
func (c *DBusClient) Reassociate(ctx context.Context) error {
	obj := c.conn.Object(WPAService, c.ifacePath)
	return commandError(c.iface, "reassociate", obj.CallWithContext(ctx, InterfaceIface+".Reassociate", 0).Err)
}

// State reads Interface.State. The bus reports lower case ("completed"),
// it is upper-cased to match the ctrl socket's wpa_state.
func (c *DBusClient) State(ctx context.Context) (string, error) {
	v, err := c.getProperty(ctx, c.ifacePath, InterfaceIface, "State")
	if err != nil {
		return "", commandError(c.iface, "get state", err)
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", commandError(c.iface, "get state", fmt.Errorf("unexpected State type %s", v.Signature()))
	}
	return strings.ToUpper(s), nil
}
