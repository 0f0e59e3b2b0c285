package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// section is a TOML table and its options, with keys relative to the table.
type section struct {
	name string
	opts []ConfigOption
}

// groupOptions splits opts into top-level keys and tables, keeping the order
// in which tables first appear.
func groupOptions(opts []ConfigOption) ([]ConfigOption, []section) {
	var top []ConfigOption
	var sections []section
	index := make(map[string]int)
	for _, o := range opts {
		name, key, ok := strings.Cut(o.Key, ".")
		if !ok {
			top = append(top, o)
			continue
		}
		i, seen := index[name]
		if !seen {
			i = len(sections)
			index[name] = i
			sections = append(sections, section{name: name})
		}
		sections[i].opts = append(sections[i].opts, ConfigOption{Key: key, Default: o.Default, Comment: o.Comment})
	}
	return top, sections
}

// RenderDefaultTOML renders a TOML config with defaults from GetConfigOptions.
func RenderDefaultTOML() string {
	top, sections := groupOptions(GetConfigOptions())
	lines := []string{"# orbitchat configuration (TOML)"}
	for _, o := range top {
		lines = append(lines, optionLines(o)...)
	}
	for _, s := range sections {
		lines = append(lines, "["+s.name+"]")
		for _, o := range s.opts {
			lines = append(lines, optionLines(o)...)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// UpdateTOML merges defaults into an existing TOML string and comments out unknown keys.
func UpdateTOML(existing string) (string, bool) {
	known := make(map[string]bool)
	for _, o := range GetConfigOptions() {
		known[o.Key] = true
	}

	present := make(map[string]bool)
	current := ""
	out := make([]string, 0, strings.Count(existing, "\n")+1)
	changed := false

	for _, line := range strings.Split(existing, "\n") {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			out = append(out, line)
			continue
		}
		if strings.HasPrefix(trim, "[") && strings.HasSuffix(trim, "]") {
			current = strings.TrimSpace(trim[1 : len(trim)-1])
			out = append(out, line)
			continue
		}
		key, ok := parseTOMLKey(line)
		if !ok {
			out = append(out, line)
			continue
		}
		if current != "" {
			key = current + "." + key
		}
		present[key] = true
		if !known[key] {
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			out = append(out,
				indent+"# OUTDATED: option removed from config schema",
				indent+"# "+strings.TrimLeft(line, " \t"))
			changed = true
			continue
		}
		out = append(out, line)
	}

	var missing []ConfigOption
	for _, o := range GetConfigOptions() {
		if !present[o.Key] {
			missing = append(missing, o)
		}
	}
	if len(missing) == 0 {
		return strings.Join(out, "\n"), changed
	}

	top, sections := groupOptions(missing)
	out = append(out, "", "# Added by config update")
	for _, o := range top {
		out = append(out, optionLines(o)...)
	}
	for _, s := range sections {
		out = append(out, "["+s.name+"]")
		for _, o := range s.opts {
			out = append(out, optionLines(o)...)
		}
	}
	return strings.Join(out, "\n"), true
}

func parseTOMLKey(line string) (string, bool) {
	key, _, ok := strings.Cut(line, "=")
	if !ok {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "[") || strings.HasPrefix(key, "\"") || strings.HasPrefix(key, "'") {
		return "", false
	}
	return key, true
}

// optionLines renders one option as its comment, assignment and a blank line.
func optionLines(o ConfigOption) []string {
	var lines []string
	if o.Comment != "" {
		lines = append(lines, "# "+o.Comment)
	}
	return append(lines, o.Key+" = "+tomlValue(o.Default), "")
}

func tomlValue(value any) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case time.Duration:
		return strconv.Quote(v.String())
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		panic(fmt.Sprintf("config: no TOML encoding for %T", value))
	}
}
