package ifset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	systemdService   = "org.freedesktop.systemd1"
	systemdPath      = "/org/freedesktop/systemd1"
	systemdInterface = "org.freedesktop.systemd1.Manager"
)

// unitStatus mirrors one a(ssssssouso) entry of ListUnitsByPatterns
type unitStatus struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	Following   string
	Path        dbus.ObjectPath
	JobID       uint32
	JobType     string
	JobPath     dbus.ObjectPath
}

// Systemd lists units through the systemd manager on the bus
type Systemd struct {
	conn *dbus.Conn
}

// NewSystemd wraps a bus connection
func NewSystemd(conn *dbus.Conn) *Systemd {
	return &Systemd{conn: conn}
}

// ListUnits returns the names of units in one of states matching patterns
func (s *Systemd) ListUnits(ctx context.Context, states, patterns []string) ([]string, error) {
	obj := s.conn.Object(systemdService, systemdPath)

	var units []unitStatus
	call := obj.CallWithContext(ctx, systemdInterface+".ListUnitsByPatterns", 0, states, patterns)
	if err := call.Store(&units); err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	return names, nil
}

// InstanceName extracts the unescaped instance of unit for a template
// pattern like "netctl-auto@*.service"
func InstanceName(unit, pattern string) (string, bool) {
	prefix, suffix, ok := strings.Cut(pattern, "*")
	if !ok {
		return "", false
	}
	if len(unit) <= len(prefix)+len(suffix) || !strings.HasPrefix(unit, prefix) || !strings.HasSuffix(unit, suffix) {
		return "", false
	}
	return Unescape(unit[len(prefix) : len(unit)-len(suffix)]), true
}

// Unescape reverses systemd unit name escaping (\xNN sequences)
func Unescape(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
