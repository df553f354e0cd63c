// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package mocksubstrate

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.dafunk.io/terminal/substrate/model"
)

// MockThreadSubstrate is a testify mock of model.ThreadSubstrate.
type MockThreadSubstrate struct {
	mock.Mock
}

func (m *MockThreadSubstrate) Start(id model.SlotID) error {
	return m.Called(id).Error(0)
}

func (m *MockThreadSubstrate) Stop(id model.SlotID) error {
	return m.Called(id).Error(0)
}

func (m *MockThreadSubstrate) Pause(ctx context.Context, id model.SlotID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockThreadSubstrate) Continue(id model.SlotID) error {
	return m.Called(id).Error(0)
}

func (m *MockThreadSubstrate) Check(id model.SlotID, timeout time.Duration) model.StatusCode {
	return m.Called(id, timeout).Get(0).(model.StatusCode)
}

func (m *MockThreadSubstrate) Command(id model.SlotID, command string) string {
	return m.Called(id, command).String(0)
}

func (m *MockThreadSubstrate) Execute(id model.SlotID, handler model.CommandHandler) bool {
	return m.Called(id, handler).Bool(0)
}

func (m *MockThreadSubstrate) SafePoint(ctx context.Context, id model.SlotID) {
	m.Called(ctx, id)
}

func (m *MockThreadSubstrate) Notify(id model.SlotID) <-chan struct{} {
	if ch, ok := m.Called(id).Get(0).(chan struct{}); ok {
		return ch
	}
	return nil
}

func (m *MockThreadSubstrate) SetBlocked(id model.SlotID, blocked bool) {
	m.Called(id, blocked)
}

func (m *MockThreadSubstrate) Kill(id model.SlotID) {
	m.Called(id)
}
