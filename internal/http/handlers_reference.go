package http

import (
	"net/http"

	"expenses/internal/log"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch users", log.OpList)
		return
	}
	Success("Users fetched successfully", users).Write(w)
}

func (s *Server) handleListActiveUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListActiveUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch active users", log.OpList)
		return
	}
	Success("Active users fetched successfully", users).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch categories", log.OpList)
		return
	}
	Success("Categories fetched successfully", categories).Write(w)
}
