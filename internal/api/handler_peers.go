package api

import (
	"net/http"

	"github.com/burrowhq/burrow/internal/gateway"
	"github.com/burrowhq/burrow/internal/service"
)

type addPeerRequest struct {
	PublicKey  string   `json:"publicKey"`
	AllowedIPs []string `json:"allowedIps"`
}

// HandleAddPeer returns a handler for POST /api/v1/exit-nodes/{id}/peers.
func HandleAddPeer(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r, "id")
		if !ok {
			return
		}
		var req addPeerRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		ack, err := cp.AddPeer(r.Context(), id, gateway.Peer{
			PublicKey:  req.PublicKey,
			AllowedIPs: req.AllowedIPs,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ack)
	}
}

// HandleRemovePeer returns a handler for
// DELETE /api/v1/exit-nodes/{id}/peers/{publicKey}.
// Keys containing '/' must be sent percent-encoded.
func HandleRemovePeer(cp *service.ControlPlaneService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIDPathParam(w, r, "id")
		if !ok {
			return
		}
		ack, err := cp.RemovePeer(r.Context(), id, PathParam(r, "publicKey"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ack)
	}
}
