// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AccessTokenParam is the persisted parameter presented during handshake.
const AccessTokenParam = "access_token"

// Params are the terminal's persisted key/value parameters.
type Params struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewParams(values map[string]string) *Params {
	p := &Params{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// LoadParams reads a flat YAML mapping. A missing file yields empty params.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("No params file at %s", path)
		return NewParams(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read params %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse params %s: %w", path, err)
	}
	return NewParams(values), nil
}

// Get returns the value of key; empty values count as absent.
func (p *Params) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok && v != ""
}

func (p *Params) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}
