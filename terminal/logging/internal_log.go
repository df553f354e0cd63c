// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetOutput configures logging output for standard loggers.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
	logrus.SetOutput(w)
}

// SetLogLevel sets the log level for internal logging. Needs to be called very
// early during startup to configure logs emitted during initialization
func SetLogLevel(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set log level. Valid log levels are:", logrus.AllLevels)
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&InternalFormatter{})
}

// InternalFormatter formats internal log lines as
// "<timestamp> [<LEVEL>] (<component>) <message> key=value ..."
type InternalFormatter struct{}

const (
	internalTimestampFormat = "02 Jan 2006 15:04:05.000"
	componentField          = "component"
	defaultComponent        = "context"
)

// Format implements logrus.Formatter
func (f *InternalFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	component := defaultComponent
	if c, ok := entry.Data[componentField].(string); ok && c != "" {
		component = c
	}

	fmt.Fprintf(b, "%s [%s] (%s) %s",
		entry.Time.UTC().Format(internalTimestampFormat),
		strings.ToUpper(entry.Level.String()),
		component,
		entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != componentField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
