// Package netlink reads network links over rtnetlink and watches them
// appear and disappear.
package netlink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"go.uber.org/zap"
)

// Netlink message types (from syscall)
const (
	RTM_NEWLINK = syscall.RTM_NEWLINK // 16
	RTM_DELLINK = syscall.RTM_DELLINK // 17
)

// rtmgrpLink is the RTMGRP_LINK multicast group
const rtmgrpLink = 0x1

// DefaultSysfsRoot holds the per-link sysfs directories
const DefaultSysfsRoot = "/sys/class/net"

// ErrUnavailable wraps failures to reach the kernel's netlink interface
var ErrUnavailable = errors.New("netlink unavailable")

// Link is one network link
type Link struct {
	Name     string
	Index    uint32
	Up       bool
	Wireless bool
}

// Event is a link appearing, changing or being removed
type Event struct {
	Link    Link
	Removed bool
}

// Lister lists links through an rtnetlink connection
type Lister struct {
	rtConn    *rtnetlink.Conn
	sysfsRoot string
}

// Dial opens an rtnetlink connection
func Dial() (*Lister, error) {
	rtConn, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, unavailable("dial rtnetlink", err)
	}
	return &Lister{rtConn: rtConn, sysfsRoot: DefaultSysfsRoot}, nil
}

// Close closes the rtnetlink connection
func (l *Lister) Close() error {
	return l.rtConn.Close()
}

// Links returns every link except loopback, sorted by name
func (l *Lister) Links() ([]Link, error) {
	msgs, err := l.rtConn.Link.List()
	if err != nil {
		return nil, unavailable("list links", err)
	}

	links := make([]Link, 0, len(msgs))
	for _, msg := range msgs {
		link, ok := linkFromMessage(msg, l.sysfsRoot)
		if !ok {
			continue
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })
	return links, nil
}

// Names returns the set of link names
func (l *Lister) Names() (map[string]Link, error) {
	links, err := l.Links()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Link, len(links))
	for _, link := range links {
		out[link.Name] = link
	}
	return out, nil
}

func linkFromMessage(msg rtnetlink.LinkMessage, sysfsRoot string) (Link, bool) {
	if msg.Attributes == nil {
		return Link{}, false
	}
	name := msg.Attributes.Name
	if name == "" || name == "lo" {
		return Link{}, false
	}
	return Link{
		Name:     name,
		Index:    msg.Index,
		Up:       msg.Attributes.OperationalState == rtnetlink.OperStateUp,
		Wireless: isWifiInterface(sysfsRoot, name),
	}, true
}

// isWifiInterface checks if interface is WiFi via sysfs
// Kernel creates /sys/class/net/<iface>/wireless for WiFi interfaces
func isWifiInterface(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name, "wireless"))
	return err == nil
}

// Watcher delivers link events from the RTMGRP_LINK multicast group
type Watcher struct {
	conn      *netlink.Conn
	sysfsRoot string
	logger    *zap.Logger
}

// NewWatcher subscribes to link events
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := netlink.Dial(syscall.NETLINK_ROUTE, &netlink.Config{Groups: rtmgrpLink})
	if err != nil {
		return nil, unavailable("dial netlink", err)
	}
	return &Watcher{conn: conn, sysfsRoot: DefaultSysfsRoot, logger: logger.Named("netlink")}, nil
}

// Run calls fn for every link event until ctx is done
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	stop := context.AfterFunc(ctx, func() { w.conn.Close() })
	defer stop()

	for {
		msgs, err := w.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return unavailable("receive", err)
		}
		for _, msg := range msgs {
			if ev, ok := w.handleRawMessage(msg); ok {
				fn(ev)
			}
		}
	}
}

// Close releases the netlink socket
func (w *Watcher) Close() error {
	return w.conn.Close()
}

// handleRawMessage decodes link messages and drops everything else
func (w *Watcher) handleRawMessage(msg netlink.Message) (Event, bool) {
	var removed bool
	switch msg.Header.Type {
	case RTM_NEWLINK:
	case RTM_DELLINK:
		removed = true
	default:
		return Event{}, false
	}

	var lm rtnetlink.LinkMessage
	if err := lm.UnmarshalBinary(msg.Data); err != nil {
		w.logger.Debug("failed to parse link message", zap.Error(err))
		return Event{}, false
	}
	link, ok := linkFromMessage(lm, w.sysfsRoot)
	if !ok {
		return Event{}, false
	}
	return Event{Link: link, Removed: removed}, true
}

func unavailable(op string, err error) error {
	var opErr *netlink.OpError
	if errors.As(err, &opErr) || errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPROTONOSUPPORT) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
