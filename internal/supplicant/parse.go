package supplicant

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNetworkList parses a LIST_NETWORKS reply:
//
//	network id / ssid / bssid / flags
//	0	home	any	[CURRENT]
//	1	work	any	[DISABLED]
func ParseNetworkList(reply string) ([]Network, error) {
	lines := strings.Split(strings.TrimRight(reply, "\n"), "\n")
	networks := make([]Network, 0, len(lines))

	for i, line := range lines {
		// Header line
		if i == 0 && strings.HasPrefix(line, "network id") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid network id in %q: %w", line, err)
		}

		net := Network{ID: id}
		if len(fields) > 1 {
			net.SSID = fields[1]
		}
		if len(fields) > 2 {
			net.BSSID = fields[2]
		}
		if len(fields) > 3 {
			net.Current, net.Disabled = parseFlags(fields[3])
		}
		networks = append(networks, net)
	}

	return networks, nil
}

// parseFlags decodes the bracketed flag column, e.g. "[CURRENT][TEMP-DISABLED]"
func parseFlags(flags string) (current, disabled bool) {
	for _, flag := range strings.Split(flags, "]") {
		switch strings.TrimPrefix(flag, "[") {
		case "CURRENT":
			current = true
		case "DISABLED":
			disabled = true
		}
	}
	return current, disabled
}

// ParseStatus parses a key=value STATUS reply
func ParseStatus(reply string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(reply, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if ok {
			result[key] = strings.TrimSpace(value)
		}
	}
	return result
}
