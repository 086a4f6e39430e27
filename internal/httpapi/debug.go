package httpapi

import (
	"encoding/json"
	"net/http"
)

type snapshotResponse struct {
	IsLeader bool        `json:"is_leader,omitempty"`
	NodeID   string      `json:"node_id,omitempty"`
	Epoch    int64       `json:"current_epoch,omitempty"`
	Events   interface{} `json:"recent_events"`
}

// handleSnapshot returns the leader-election state (if HA is configured)
// plus the recent activity timeline, for operator debugging.
func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	resp := snapshotResponse{Events: a.timeline.GetAllEvents()}

	if a.elector != nil {
		state := a.elector.GetState()
		resp.IsLeader = state.IsLeader
		resp.NodeID = state.NodeID
		resp.Epoch = state.CurrentEpoch
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
