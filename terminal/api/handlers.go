// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"go.dafunk.io/terminal/core"
	"go.dafunk.io/terminal/interop"
)

const (
	errorTypeInvalidCommand = "Client.InvalidCommand"
	errorTypeThreadNotFound = "Client.ThreadNotFound"
	errorTypeInvalidRequest = "Client.InvalidRequest"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// CommandResponse is the JSON body of a served command.
type CommandResponse struct {
	Thread  string      `json:"thread"`
	Command string      `json:"command"`
	Kind    string      `json:"kind"`
	Value   interface{} `json:"value"`
}

func sendError(w http.ResponseWriter, r *http.Request, status int, errorType, msg string) {
	render.Status(r, status)
	render.JSON(w, r, &ErrorResponse{ErrorType: errorType, ErrorMessage: msg})
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func InternalStateHandler(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(ctrl.InternalState().AsJSON())
}

// KeepAliveHandler runs one keep-alive pass and returns the resulting state.
func KeepAliveHandler(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	ctrl.KeepAlive(r.Context())
	render.JSON(w, r, ctrl.InternalState())
}

func CacheClearHandler(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	ctrl.CacheClear()
	w.WriteHeader(http.StatusNoContent)
}

// CommandHandler sends the wire command in the request body to the thread in
// the URL and renders the decoded reply.
func CommandHandler(w http.ResponseWriter, r *http.Request, ctrl Controller) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, errorTypeInvalidRequest, fmt.Sprintf("Failed to read full body: %s", err))
		return
	}
	cmd, err := interop.ParseCommand(strings.TrimSpace(string(body)))
	if err != nil {
		sendError(w, r, http.StatusBadRequest, errorTypeInvalidCommand, err.Error())
		return
	}

	thread := core.ThreadName(chi.URLParam(r, "thread"))
	resp, err := ctrl.Command(thread, cmd)
	if errors.Is(err, core.ErrThreadNotFound) {
		sendError(w, r, http.StatusNotFound, errorTypeThreadNotFound, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Errorf("Command %s to %s failed", cmd, thread)
		sendError(w, r, http.StatusInternalServerError, errorTypeInvalidRequest, err.Error())
		return
	}

	out := &CommandResponse{Thread: string(thread), Command: cmd.String()}
	switch resp.Kind {
	case interop.ResponseBool:
		out.Kind, out.Value = "bool", resp.Bool
	case interop.ResponseText:
		out.Kind, out.Value = "text", resp.Text
	default:
		out.Kind = "empty"
	}
	render.JSON(w, r, out)
}
