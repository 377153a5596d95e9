package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ItemHandler serves a cached item document from the static game-data API.
func (s *Server) ItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := r.PathValue("itemId")

		data, err := s.gamedata.Fetch(r.Context(), "item:"+itemID, "/data/wow/item/"+itemID, "static")
		if err != nil {
			log.Error().Err(err).Str("itemId", itemID).Msg("item fetch failed")
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream fetch failed"})
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write(data)
	}
}

// CharacterHandler serves a cached character profile.
func (s *Server) CharacterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		realm := strings.ToLower(r.PathValue("realm"))
		name := strings.ToLower(r.PathValue("name"))

		key := "character:" + realm + ":" + name
		path := "/profile/wow/character/" + realm + "/" + name

		data, err := s.gamedata.Fetch(r.Context(), key, path, "profile")
		if err != nil {
			log.Error().Err(err).Str("realm", realm).Str("name", name).Msg("character fetch failed")
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream fetch failed"})
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write(data)
	}
}
