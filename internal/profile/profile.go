// Package profile reads netctl profile definitions.
//
// Definitions are shell fragments. Only plain Key=value assignments are
// read; arrays and anything needing a shell are ignored, nothing is
// evaluated.
package profile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultDir is the netctl profile directory
	DefaultDir = "/etc/netctl"
	// DefaultTimeoutWPA bounds association when a profile sets no TimeoutWPA
	DefaultTimeoutWPA = 15 * time.Second
)

// Definition is the part of a profile the switcher needs
type Definition struct {
	Name        string
	Description string
	Interface   string
	Connection  string
	Security    string
	ESSID       string
	ExcludeAuto bool
	TimeoutWPA  time.Duration
}

var assignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// Parse reads one definition. TimeoutWPA defaults to DefaultTimeoutWPA.
func Parse(name string, r io.Reader) (Definition, error) {
	filtered, err := scalarAssignments(r)
	if err != nil {
		return Definition{}, fmt.Errorf("read profile %s: %w", name, err)
	}

	v := viper.New()
	v.SetConfigType("env")
	v.SetDefault("timeoutwpa", int(DefaultTimeoutWPA/time.Second))
	v.SetDefault("excludeauto", "no")
	if err := v.ReadConfig(bytes.NewReader(filtered)); err != nil {
		return Definition{}, fmt.Errorf("parse profile %s: %w", name, err)
	}

	timeout := v.GetInt("timeoutwpa")
	if timeout <= 0 {
		return Definition{}, fmt.Errorf("profile %s: invalid TimeoutWPA %q", name, v.GetString("timeoutwpa"))
	}

	return Definition{
		Name:        name,
		Description: v.GetString("description"),
		Interface:   v.GetString("interface"),
		Connection:  v.GetString("connection"),
		Security:    v.GetString("security"),
		ESSID:       v.GetString("essid"),
		ExcludeAuto: isYes(v.GetString("excludeauto")),
		TimeoutWPA:  time.Duration(timeout) * time.Second,
	}, nil
}

// scalarAssignments keeps top-level Key=value lines and drops comments,
// array assignments (including multi-line ones) and shell statements.
func scalarAssignments(r io.Reader) ([]byte, error) {
	var (
		out     bytes.Buffer
		inArray bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if inArray {
			if strings.HasSuffix(line, ")") {
				inArray = false
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := assignment.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.HasPrefix(m[2], "(") {
			inArray = !strings.HasSuffix(m[2], ")")
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes(), scanner.Err()
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// Store loads definitions from a directory
type Store struct {
	Dir string
}

// ErrNotExist is returned when no definition file exists for a name
var ErrNotExist = errors.New("profile definition does not exist")

// Load reads <Dir>/<name>
func (s Store) Load(name string) (Definition, error) {
	if name == "" || strings.ContainsRune(name, '/') {
		return Definition{}, fmt.Errorf("invalid profile name %q", name)
	}

	dir := s.Dir
	if dir == "" {
		dir = DefaultDir
	}

	f, err := os.Open(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return Definition{}, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	if err != nil {
		return Definition{}, err
	}
	defer f.Close()

	return Parse(name, f)
}

// TimeoutWPA returns the association timeout of a profile. Missing or
// unreadable definitions fall back to DefaultTimeoutWPA.
func (s Store) TimeoutWPA(name string) (time.Duration, error) {
	def, err := s.Load(name)
	if err != nil {
		return DefaultTimeoutWPA, err
	}
	return def.TimeoutWPA, nil
}
