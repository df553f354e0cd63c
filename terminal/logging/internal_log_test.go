// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"io/ioutil"
	"log"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputRedirectsBothLoggers(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(ioutil.Discard)

	log.Print("from the standard logger")
	logrus.Print("from logrus")
	assert.Contains(t, buf.String(), "from the standard logger")
	assert.Contains(t, buf.String(), "from logrus")
}

func TestSetLogLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	SetLogLevel("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	_, ok := logrus.StandardLogger().Formatter.(*InternalFormatter)
	assert.True(t, ok)
}

func TestInternalFormatter(t *testing.T) {
	logger := logrus.New()
	logger.SetFormatter(&InternalFormatter{})
	buf := new(bytes.Buffer)
	logger.SetOutput(buf)

	logger.WithField("slot", 1).WithField("label", "Worker.CommandEval").Warn("Failed to decode reply")

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, "[WARNING] (context) Failed to decode reply")
	assert.Contains(t, line, " label=Worker.CommandEval slot=1\n")
}

func TestInternalFormatterComponent(t *testing.T) {
	logger := logrus.New()
	logger.SetFormatter(&InternalFormatter{})
	buf := new(bytes.Buffer)
	logger.SetOutput(buf)

	logger.WithField("component", "scheduler").Info("spawned")
	assert.Contains(t, buf.String(), "[INFO] (scheduler) spawned\n")
	assert.NotContains(t, buf.String(), "component=")
}

func BenchmarkInternalFormatterWithFields(b *testing.B) {
	logger := logrus.New()
	logger.SetFormatter(&InternalFormatter{})
	logger.SetOutput(ioutil.Discard)
	entry := logger.WithField("slot", 1).WithField("label", "Worker.Exit")
	for n := 0; n < b.N; n++ {
		entry.Warn("Worker returned")
	}
}
