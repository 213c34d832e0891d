// Package params loads grid configurations from JSON files.
package params

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"tileNTT/topology"
)

// keys accepted for each field, first match wins. The snake_case names
// follow the hardware build scripts.
var (
	columnKeys = []string{"columns", "Columns", "n_column", "n_col"}
	rowKeys    = []string{"rows", "Rows", "n_row"}
	nKeys      = []string{"N", "n"}
	logNKeys   = []string{"logN", "log_n", "logn"}
	pKeys      = []string{"p", "P", "q", "Q"}
	depthKeys  = []string{"depth", "Depth", "buffer_depth"}
)

// LoadConfig reads a grid configuration and validates it. Missing depth falls
// back to the default.
func LoadConfig(path string) (topology.Config, error) {
	var cfg topology.Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Columns = intField(raw, columnKeys)
	cfg.Rows = intField(raw, rowKeys)
	cfg.N = intField(raw, nKeys)
	if cfg.N == 0 {
		if l := intField(raw, logNKeys); l > 0 && l < 31 {
			cfg.N = 1 << l
		}
	}
	cfg.Depth = intField(raw, depthKeys)
	for _, k := range pKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			cfg.P = uint32(t)
		case string:
			p, err := parsePString(t)
			if err != nil {
				return cfg, err
			}
			cfg.P = p
		}
		break
	}
	if cfg.N == 0 || cfg.P == 0 {
		return cfg, fmt.Errorf("invalid or missing N/p in %s", path)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg in the canonical key spelling.
func SaveConfig(path string, cfg topology.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func intField(raw map[string]any, keys []string) int {
	for _, k := range keys {
		if f, ok := raw[k].(float64); ok {
			return int(f)
		}
	}
	return 0
}

func parsePString(s string) (uint32, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid p string: %q", s)
		}
		return uint32(v), nil
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	if x, err := hex.DecodeString(s); err == nil && len(x) <= 4 {
		var p uint32
		for _, b := range x {
			p = p<<8 | uint32(b)
		}
		return p, nil
	}
	return 0, fmt.Errorf("invalid p string: %q", s)
}
