package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	tomlv1 "github.com/pelletier/go-toml"

	"github.com/conn-castle/patchtool/internal/fsutil"
	"github.com/conn-castle/patchtool/internal/messages"
)

type keyKind int

const (
	keyString keyKind = iota
	keyBool
	keyList
)

// settableKeys lists every key `config set` accepts.
var settableKeys = map[string]keyKind{
	"installation.name":          keyString,
	"installation.version":       keyString,
	"installation.layers":        keyList,
	"installation.add-ons":       keyList,
	"installation.configuration": keyList,
	"policy.override-all":        keyBool,
	"policy.override-modules":    keyBool,
	"policy.override":            keyList,
	"policy.preserve":            keyList,
	"log.level":                  keyString,
	"log.format":                 keyString,
	"lock.timeout":               keyString,
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settableKeys))
	for key := range settableKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Set writes key = value into the config at path, creating the file when
// missing. Lists are comma separated; an empty value sets an empty list.
// The file is re-encoded, so comments are not kept. The result is validated
// before it is written, but an incomplete installation section is allowed
// so it can be filled in one key at a time.
func Set(path, key, value string) (*Config, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf(messages.ConfigUnknownKeyFmt, key)
	}
	parsed, err := parseValue(kind, key, value)
	if err != nil {
		return nil, err
	}

	tree, err := loadTree(path)
	if err != nil {
		return nil, err
	}
	tree.Set(key, parsed)
	out, err := tree.ToTomlString()
	if err != nil {
		return nil, fmt.Errorf(messages.ConfigEncodeFmt, path, err)
	}

	cfg, err := parse([]byte(out), path, false)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf(messages.ConfigWriteFmt, path, err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(out), 0o644); err != nil {
		return nil, fmt.Errorf(messages.ConfigWriteFmt, path, err)
	}
	return cfg, nil
}

func loadTree(path string) (*tomlv1.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tomlv1.TreeFromMap(map[string]interface{}{})
		}
		return nil, fmt.Errorf(messages.ConfigReadFmt, path, err)
	}
	tree, err := tomlv1.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf(messages.ConfigInvalidConfigFmt, path, err)
	}
	return tree, nil
}

func parseValue(kind keyKind, key, value string) (interface{}, error) {
	switch kind {
	case keyBool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf(messages.ConfigParseValueFmt, value, key, err)
		}
		return b, nil
	case keyList:
		items := []interface{}{}
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
		return items, nil
	default:
		return strings.TrimSpace(value), nil
	}
}
