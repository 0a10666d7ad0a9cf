// Package kvopen selects a kv.Backend implementation from a URL-shaped
// configuration string. It lives outside package kv itself so that kv
// stays free of a dependency on every concrete backend.
package kvopen

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/transferd/transferd/pkg/kv"
	"github.com/transferd/transferd/pkg/kv/filekv"
	"github.com/transferd/transferd/pkg/kv/memkv"
	"github.com/transferd/transferd/pkg/kv/rediskv"
)

// Open builds a kv.Backend from addr, dispatching on its URL scheme:
//
//	memory://                 an in-process map, state lost on restart
//	file:///var/lib/transferd a directory of one-file-per-key entries
//	redis://host:6379/0       a shared Redis instance, for multi-process
//	                          or multi-node deployments
//
// This is the "pluggable distributed state store" component: the rest of
// the core only ever sees a kv.Backend and never branches on which of
// these three it was handed.
func Open(addr string) (kv.Backend, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("kvopen: invalid backend address %q: %w", addr, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory", "mem", "":
		return memkv.New(), nil
	case "file":
		dir := u.Path
		if dir == "" {
			dir = u.Opaque
		}
		if dir == "" {
			return nil, fmt.Errorf("kvopen: file:// backend address %q is missing a path", addr)
		}
		return filekv.New(dir), nil
	case "redis", "rediss":
		return rediskv.NewFromURL(addr)
	default:
		return nil, fmt.Errorf("kvopen: unsupported backend scheme %q in %q", u.Scheme, addr)
	}
}
