// Package supplicanttest provides an in-memory supplicant for tests.
package supplicanttest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"x-netctl/internal/supplicant"
)

// Network seeds one configured network
type Network struct {
	ID       int
	SSID     string
	Name     string // id_str; empty means unset
	Disabled bool
}

// Supplicant models the subset of wpa_supplicant behaviour the profile
// tools rely on: SELECT_NETWORK disables every sibling, DISABLE_NETWORK of the
// current network disconnects.
type Supplicant struct {
	mu       sync.Mutex
	iface    string
	networks map[int]*Network
	current  int
	state    string

	// Associate decides whether selecting id results in a completed
	// association. Nil means never.
	Associate func(id int) bool
	// FailOn makes the named command ("select_network", "enable_network all",
	// "list_networks", ...) fail.
	FailOn map[string]bool

	commands []string
	closed   int
}

// New creates a disconnected supplicant for iface
func New(iface string, networks ...Network) *Supplicant {
	s := &Supplicant{
		iface:    iface,
		networks: make(map[int]*Network),
		current:  -1,
		state:    "DISCONNECTED",
		FailOn:   make(map[string]bool),
	}
	for _, n := range networks {
		n := n
		s.networks[n.ID] = &n
	}
	return s
}

// Connect marks id as the associated network
func (s *Supplicant) Connect(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	s.state = supplicant.StateCompleted
}

// Enabled reports the enabled flag of every network by id
func (s *Supplicant) Enabled() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]bool, len(s.networks))
	for id, n := range s.networks {
		out[id] = !n.Disabled
	}
	return out
}

// Current returns the associated network id or -1
func (s *Supplicant) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Commands returns every command received, in order
func (s *Supplicant) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Mutations returns the commands that change network state
func (s *Supplicant) Mutations() []string {
	var out []string
	for _, cmd := range s.Commands() {
		switch {
		case cmd == "list_networks", cmd == "status", strings.HasPrefix(cmd, "get_network"):
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// Closed reports how many clients were closed
func (s *Supplicant) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Supplicant) record(name, cmd string) error {
	s.commands = append(s.commands, cmd)
	if s.FailOn[name] || s.FailOn[cmd] {
		return &supplicant.CommandError{Interface: s.iface, Command: cmd, Err: errors.New("command failed")}
	}
	return nil
}

// Client returns a supplicant.Client view of s
func (s *Supplicant) Client() supplicant.Client { return &client{s: s} }

type client struct{ s *Supplicant }

func (c *client) Interface() string { return c.s.iface }

func (c *client) Close() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.closed++
	return nil
}

func (c *client) ListNetworks(ctx context.Context) ([]supplicant.Network, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list_networks", "list_networks"); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(s.networks))
	for id := range s.networks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]supplicant.Network, 0, len(ids))
	for _, id := range ids {
		n := s.networks[id]
		out = append(out, supplicant.Network{
			ID:       id,
			SSID:     n.SSID,
			BSSID:    "any",
			Current:  id == s.current,
			Disabled: n.Disabled,
		})
	}
	return out, nil
}

func (c *client) NetworkAttr(ctx context.Context, id int, attr string) (string, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get_network", fmt.Sprintf("get_network %d %s", id, attr)); err != nil {
		return "", err
	}
	n, ok := s.networks[id]
	if !ok || attr != supplicant.AttrIDStr || n.Name == "" {
		return "", supplicant.ErrNoAttribute
	}
	return strconv.Quote(n.Name), nil
}

func (c *client) SelectNetwork(ctx context.Context, id int) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("select_network", fmt.Sprintf("select_network %d", id)); err != nil {
		return err
	}
	n, ok := s.networks[id]
	if !ok {
		return &supplicant.CommandError{Interface: s.iface, Command: "select_network", Err: errors.New("no such network")}
	}
	for other, net := range s.networks {
		net.Disabled = other != id
	}
	n.Disabled = false

	s.current = -1
	s.state = "SCANNING"
	if s.Associate != nil && s.Associate(id) {
		s.current = id
		s.state = supplicant.StateCompleted
	}
	return nil
}

func (c *client) setEnabled(name string, id int, enabled bool) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(name, fmt.Sprintf("%s %d", name, id)); err != nil {
		return err
	}
	n, ok := s.networks[id]
	if !ok {
		return &supplicant.CommandError{Interface: s.iface, Command: name, Err: errors.New("no such network")}
	}
	n.Disabled = !enabled
	if !enabled && s.current == id {
		s.current = -1
		s.state = "DISCONNECTED"
	}
	return nil
}

func (c *client) setAll(name string, enabled bool) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(name, name+" all"); err != nil {
		return err
	}
	for _, n := range s.networks {
		n.Disabled = !enabled
	}
	if !enabled {
		s.current = -1
		s.state = "DISCONNECTED"
	}
	return nil
}

func (c *client) EnableNetwork(ctx context.Context, id int) error {
	return c.setEnabled("enable_network", id, true)
}

func (c *client) DisableNetwork(ctx context.Context, id int) error {
	return c.setEnabled("disable_network", id, false)
}

func (c *client) EnableAll(ctx context.Context) error { return c.setAll("enable_network", true) }

func (c *client) DisableAll(ctx context.Context) error { return c.setAll("disable_network", false) }

func (c *client) Reassociate(ctx context.Context) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.record("reassociate", "reassociate")
}

func (c *client) State(ctx context.Context) (string, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("status", "status"); err != nil {
		return "", err
	}
	return s.state, nil
}

// Bus dispatches dials to per-interface supplicants
type Bus map[string]*Supplicant

// Dial implements supplicant.Dialer
func (b Bus) Dial(ctx context.Context, iface string) (supplicant.Client, error) {
	s, ok := b[iface]
	if !ok {
		return nil, &supplicant.CommandError{Interface: iface, Command: "connect", Err: errors.New("no supplicant")}
	}
	if s.FailOn["connect"] {
		return nil, &supplicant.CommandError{Interface: iface, Command: "connect", Err: errors.New("connection refused")}
	}
	return s.Client(), nil
}
