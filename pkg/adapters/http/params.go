package http

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// EventParams are the query parameters of GET /sessions/{sessionId}/events.
type EventParams struct {
	// Player receives private messages addressed to this player id.
	Player string
	// Watch limits diff events to these sections: game, players, phase or
	// status. Empty means every diff.
	Watch []string
}

// bindEventParams decodes ?player=ann&watch=game,phase.
func bindEventParams(r *http.Request) (EventParams, error) {
	var p EventParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "player", q, &p.Player); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", false, false, "watch", q, &p.Watch); err != nil {
		return p, err
	}
	return p, nil
}
