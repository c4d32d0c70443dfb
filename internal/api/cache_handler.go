package api

import (
	"encoding/json"
	"net/http"

	"github.com/revittco/costgate/internal/cache"
	"github.com/revittco/costgate/internal/consent"
)

type cacheHandler struct {
	responses  *cache.Cache[json.RawMessage]
	identities *cache.Cache[consent.Identity]
}

type cacheStatsResponse struct {
	Upstream   cache.Stats `json:"upstream"`
	Identities cache.Stats `json:"identities"`
}

func (h *cacheHandler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		Upstream:   h.responses.Stats(),
		Identities: h.identities.Stats(),
	})
}

type flushRequest struct {
	Layer string `json:"layer"` // "upstream", "identities", "all" (default)
}

func (h *cacheHandler) flush(w http.ResponseWriter, r *http.Request) {
	var req flushRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	switch req.Layer {
	case "upstream":
		h.responses.InvalidatePrefix("")
	case "identities":
		h.identities.InvalidatePrefix("")
	case "", "all":
		h.responses.InvalidatePrefix("")
		h.identities.InvalidatePrefix("")
	default:
		writeError(w, http.StatusBadRequest, "layer must be upstream, identities or all")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
