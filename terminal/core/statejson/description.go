// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package statejson

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// ThreadDescription ...
type ThreadDescription struct {
	Name         string `json:"name"`
	Slot         int    `json:"slot"`
	Status       string `json:"status"`
	RunID        string `json:"runId,omitempty"`
	SpawnedAt    int64  `json:"spawnedAt,omitempty"`
	Respawns     int    `json:"respawns"`
	HandleActive bool   `json:"handleActive"`
}

// SessionDescription ...
type SessionDescription struct {
	Booting         bool   `json:"booting"`
	Connecting      bool   `json:"connecting"`
	ConnectingUntil int64  `json:"connectingUntil,omitempty"`
	ApplicationName string `json:"applicationName,omitempty"`
}

// InternalStateDescription describes the workers, the command cache and the
// session for debugging purposes
type InternalStateDescription struct {
	Threads         []ThreadDescription       `json:"threads"`
	Cache           map[int]map[string]string `json:"cache"`
	Session         *SessionDescription       `json:"session,omitempty"`
	FirstFatalError string                    `json:"firstFatalError"`
}

func (s *InternalStateDescription) AsJSON() []byte {
	bytes, err := json.Marshal(s)
	if err != nil {
		log.Panicf("Failed to marshall internal states: %s", err)
	}
	return bytes
}
