package main

import (
	"encoding/json"
	"net/http"

	"github.com/packethost/topoctl/controller"
	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/packethost/topoctl/topology"
	"github.com/pkg/errors"
)

type httpError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error(errors.Wrap(err, "marshal response"))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, topology.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, topology.ErrMalformedEvent):
		code = http.StatusBadRequest
	case errors.Is(err, controller.ErrStopped):
		code = http.StatusServiceUnavailable
	}
	body := httpError{Error: err.Error()}
	if r, ok := topology.ReasonOf(err); ok {
		body.Reason = string(r)
	}
	writeJSON(w, code, body)
}

// communicationHandler serves GET /communication/{src}/{dst}. A partial
// installation answers 502 with the same body as a complete one.
func (s *server) communicationHandler(w http.ResponseWriter, r *http.Request) {
	src, dst := r.PathValue("src"), r.PathValue("dst")
	res, err := measure("Communicate", "install", func() (*topoctl.CommunicationResponse, error) {
		return s.communicate(r.Context(), src, dst)
	})
	if err != nil {
		logger.With("src", src, "dst", dst).Error(err)
		writeError(w, err)
		return
	}

	code := http.StatusOK
	if res.Status == topoctl.StatusPartial {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, res)
}

func (s *server) topologyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, topoctl.FromSnapshot(s.ctrl.Topology().Snapshot()))
}

func (s *server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &topoctl.FlowsResponse{Flows: topoctl.FromFlows(s.ctrl.Topology().Flows())})
}

func (s *server) hostHandler(w http.ResponseWriter, r *http.Request) {
	ip, err := parseIPv4(r.PathValue("ip"))
	if err != nil {
		writeError(w, err)
		return
	}
	h, err := s.ctrl.Topology().HostByIP(ip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topoctl.FromHost(h))
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /communication/{src}/{dst}", s.communicationHandler)
	mux.HandleFunc("GET /topology", s.topologyHandler)
	mux.HandleFunc("GET /flows", s.flowsHandler)
	mux.HandleFunc("GET /hosts/{ip}", s.hostHandler)
}
