/*
   Driveback - floppy & QIC-117 tape preservation controller core
   Copyright (c) 2025, the Driveback authors

   This file is part of Driveback.

   Driveback is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Driveback is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Driveback. If not, see <http://www.gnu.org/licenses/>.
*/

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/retroflux/driveback/pkg/daemon"
)

//
type APIServer interface {
	Serve() error
	Stop() error
}

//
func NewAPIServer(addr string, d *daemon.Daemon) APIServer {
	return &api{address: addr, daemon: d}
}

//
type api struct {
	address string
	daemon  *daemon.Daemon
	server  *http.Server
}

//
func (a *api) Serve() error {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "detect", "PUT", "/detect", a.startDetect)
	addRoute(router, "detect", "GET", "/detect", a.getDetect)
	addRoute(router, "instrumentation", "GET", "/instrumentation",
		a.instrumentation)
	addRoute(router, "instrumentation", "PUT", "/instrumentation",
		a.resetInstrumentation)
	addRoute(router, "config", "PUT", "/config", a.config)
	addRoute(router, "register", "GET", "/registers/{reg:[0-7]}",
		a.readRegister)
	addRoute(router, "register", "PUT", "/registers/{reg:[0-7]}",
		a.writeRegister)
	addRoute(router, "resync", "PUT", "/resync", a.resync)

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:8850", a.address)
	}

	log.Infof("Driveback API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: router}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	stat := a.daemon.Status()

	if wantsJSON(req) {
		sendJSONReply(stat, http.StatusOK, w)
	} else {
		sendReply([]byte(statusText(stat)), http.StatusOK, w)
	}
}

//
func (a *api) startDetect(w http.ResponseWriter, req *http.Request) {

	a.daemon.StartDetect()

	if !isFlagSet(req, "wait") {
		sendReply([]byte("detection started"), http.StatusOK, w)
		return
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, inProgress, done := a.daemon.Detection(); done && !inProgress {
			a.getDetect(w, req)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	handleError(fmt.Errorf("detection did not finish"),
		http.StatusRequestTimeout, w)
}

//
func (a *api) getDetect(w http.ResponseWriter, req *http.Request) {

	det := newDetection(a.daemon.Detection())

	if wantsJSON(req) {
		sendJSONReply(det, http.StatusOK, w)
	} else {
		sendReply([]byte(det.String()), http.StatusOK, w)
	}
}

//
func (a *api) instrumentation(w http.ResponseWriter, req *http.Request) {

	s := a.daemon.Instrumentation()
	inst := &Instrumentation{
		Transitions: s.Transitions,
		Indexes:     s.Indexes,
		Intervals:   s.Intervals,
	}

	if wantsJSON(req) {
		sendJSONReply(inst, http.StatusOK, w)
	} else {
		sendReply([]byte(inst.String()), http.StatusOK, w)
	}
}

//
func (a *api) resetInstrumentation(w http.ResponseWriter, req *http.Request) {
	a.daemon.ResetInstrumentation()
	sendReply([]byte("instrumentation counters reset"), http.StatusOK, w)
}

//
func (a *api) config(w http.ResponseWriter, req *http.Request) {

	item, err := getArg(req, "item")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	arg, err := getIntArg(req, "arg")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if handleError(
		a.daemon.Configure(item, arg), http.StatusUnprocessableEntity, w) {
		return
	}

	sendReply([]byte(
		fmt.Sprintf("configured %s = %d", item, arg)), http.StatusOK, w)
}

//
func (a *api) readRegister(w http.ResponseWriter, req *http.Request) {

	reg := getReg(w, req)
	if reg == -1 {
		return
	}

	val, err := a.daemon.ReadRegister(getInstance(req), reg)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(map[string]interface{}{
			"register": reg, "value": val}, http.StatusOK, w)
	} else {
		sendReply([]byte(fmt.Sprintf("0x%02x", val)), http.StatusOK, w)
	}
}

//
func (a *api) writeRegister(w http.ResponseWriter, req *http.Request) {

	reg := getReg(w, req)
	if reg == -1 {
		return
	}

	val, err := getIntArg(req, "value")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if val < 0 || val > 255 {
		handleError(fmt.Errorf("value out of range: %d", val),
			http.StatusUnprocessableEntity, w)
		return
	}

	if handleError(
		a.daemon.WriteRegister(getInstance(req), reg, byte(val)),
		http.StatusUnprocessableEntity, w) {
		return
	}

	sendReply([]byte(fmt.Sprintf(
		"register %d = 0x%02x", reg, val)), http.StatusOK, w)
}

//
func (a *api) resync(w http.ResponseWriter, req *http.Request) {
	go func() {
		if err := a.daemon.ResetConduit(); err != nil {
			log.Errorf("conduit reset failed: %v", err)
		}
	}()
	sendReply([]byte("resetting conduit"), http.StatusOK, w)
}

//
func getReg(w http.ResponseWriter, req *http.Request) int {
	vars := mux.Vars(req)
	reg, err := strconv.Atoi(vars["reg"])
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return -1
	}
	return reg
}

//
func getInstance(req *http.Request) string {
	arg, _ := getArg(req, "instance")
	if arg == "" {
		return "A"
	}
	return arg
}

//
func isFlagSet(req *http.Request, flag string) bool {
	arg, _ := getArg(req, flag)
	return arg == "true"
}

//
func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

//
func getIntArg(req *http.Request, arg string) (int, error) {
	if val, err := getArg(req, arg); err != nil {
		return -1, err
	} else {
		if ret, err := strconv.Atoi(val); err != nil {
			return -1, err
		} else {
			return ret, nil
		}
	}
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing error: %v", err)
	}
}

// FIXME: make more tolerant
func wantsJSON(req *http.Request) bool {
	return req.Header.Get("Content-Type") == "application/json"
}
