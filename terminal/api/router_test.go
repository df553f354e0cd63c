// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/core/statejson"
	"go.dafunk.io/terminal/interop"
	"go.dafunk.io/terminal/metrics"
)

type mockController struct {
	mock.Mock
}

func (m *mockController) InternalState() *statejson.InternalStateDescription {
	return m.Called().Get(0).(*statejson.InternalStateDescription)
}

func (m *mockController) KeepAlive(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockController) Command(name core.ThreadName, cmd interop.Command) (interop.Response, error) {
	args := m.Called(name, cmd)
	return args.Get(0).(interop.Response), args.Error(1)
}

func (m *mockController) CacheClear() {
	m.Called()
}

func makeTestRequest(t *testing.T, router http.Handler, request *http.Request) *httptest.ResponseRecorder {
	responseRecorder := httptest.NewRecorder()
	router.ServeHTTP(responseRecorder, request)
	t.Logf("test(%v) = %v", request.URL, responseRecorder.Code)
	return responseRecorder
}

func testState() *statejson.InternalStateDescription {
	return &statejson.InternalStateDescription{
		Threads: []statejson.ThreadDescription{
			{Name: string(core.ThreadStatusBar), Slot: 0, Status: core.ThreadAliveStatusName},
			{Name: string(core.ThreadCommunication), Slot: 1, Status: core.ThreadDeadStatusName},
		},
		Cache: map[int]map[string]string{1: {"connected?": "true"}},
	}
}

func TestPing(t *testing.T) {
	router := NewHTTPRouter(&mockController{}, nil)
	resp := makeTestRequest(t, router, httptest.NewRequest("GET", "/test/ping", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "pong", resp.Body.String())
}

func TestInternalState(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("InternalState").Return(testState())
	router := NewHTTPRouter(ctrl, nil)

	resp := makeTestRequest(t, router, httptest.NewRequest("GET", "/test/internalState", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var state statejson.InternalStateDescription
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &state))
	assert.Equal(t, *testState(), state)
}

func TestKeepAlive(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("KeepAlive", mock.Anything).Once()
	ctrl.On("InternalState").Return(testState())
	router := NewHTTPRouter(ctrl, nil)

	resp := makeTestRequest(t, router, httptest.NewRequest("POST", "/test/keepAlive", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	ctrl.AssertExpectations(t)

	resp = makeTestRequest(t, router, httptest.NewRequest("GET", "/test/keepAlive", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestCacheClear(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("CacheClear").Once()
	router := NewHTTPRouter(ctrl, nil)

	resp := makeTestRequest(t, router, httptest.NewRequest("POST", "/test/cacheClear", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	ctrl.AssertExpectations(t)
}

func TestCommand(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Command", core.ThreadCommunication, interop.ConnectedQuery).Return(interop.Bool(true), nil)
	ctrl.On("Command", core.ThreadCommunication, interop.Code).Return(interop.Text("T-1"), nil)
	ctrl.On("Command", core.ThreadCommunication, interop.Set("app", "main")).Return(interop.Empty, nil)
	router := NewHTTPRouter(ctrl, nil)

	for _, tc := range []struct {
		body     string
		expected CommandResponse
	}{
		{"connected?", CommandResponse{Thread: "communication", Command: "connected?", Kind: "bool", Value: true}},
		{"code\n", CommandResponse{Thread: "communication", Command: "code", Kind: "text", Value: "T-1"}},
		{"app=main", CommandResponse{Thread: "communication", Command: "app=main", Kind: "empty"}},
	} {
		t.Run(tc.body, func(t *testing.T) {
			request := httptest.NewRequest("POST", "/test/command/communication", strings.NewReader(tc.body))
			resp := makeTestRequest(t, router, request)
			require.Equal(t, http.StatusOK, resp.Code)

			var got CommandResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCommandErrors(t *testing.T) {
	ctrl := &mockController{}
	ctrl.On("Command", core.ThreadName("printer"), interop.Close).
		Return(interop.Empty, fmt.Errorf("%w: printer", core.ErrThreadNotFound))
	router := NewHTTPRouter(ctrl, nil)

	resp := makeTestRequest(t, router, httptest.NewRequest("POST", "/test/command/communication", strings.NewReader("reboot")))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assertResponseErrorType(t, errorTypeInvalidCommand, resp)

	resp = makeTestRequest(t, router, httptest.NewRequest("POST", "/test/command/printer", strings.NewReader("close")))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assertResponseErrorType(t, errorTypeThreadNotFound, resp)
}

func assertResponseErrorType(t *testing.T, expectedErrorType string, response *httptest.ResponseRecorder) {
	errResp := ErrorResponse{}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &errResp))
	assert.Equal(t, expectedErrorType, errResp.ErrorType)
}

func TestMetricsRoute(t *testing.T) {
	router := NewHTTPRouter(&mockController{}, nil)
	resp := makeTestRequest(t, router, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	m := metrics.New()
	m.ObserveSpawn(string(core.ThreadCommunication))
	router = NewHTTPRouter(&mockController{}, m)
	resp = makeTestRequest(t, router, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `dafunk_context_worker_spawns_total{thread="communication"} 1`)
}
