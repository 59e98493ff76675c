package api

import "net/http"

// publicEndpoints is the fixed listing served by GET /v2.
var publicEndpoints = []string{
	"/v2",
	"/v2/images",
	"/v2/images/:id",
	"/v2/images/:id/like",
	"/v2/images/:id/save",
	"/v2/images/:id/artist",
	"/v2/images/:id/liked-by",
	"/v2/images/:id/categories",
	"/v2/images/:id/characters",
	"/v2/images/:id/relationships/artist",
	"/v2/images/:id/relationships/liked-by",
	"/v2/images/:id/relationships/categories",
	"/v2/images/:id/relationships/characters",
	"/v2/artists",
	"/v2/artists/:id",
	"/v2/artists/:id/images",
	"/v2/artists/:id/follow",
	"/v2/artists/:id/followers",
	"/v2/artists/:id/relationships/images",
	"/v2/artists/:id/relationships/followers",
	"/v2/categories",
	"/v2/categories/:id",
	"/v2/categories/:id/images",
	"/v2/categories/:id/follow",
	"/v2/categories/:id/followers",
	"/v2/categories/:id/relationships/images",
	"/v2/categories/:id/relationships/followers",
	"/v2/characters",
	"/v2/characters/:id",
	"/v2/characters/:id/images",
	"/v2/characters/:id/follow",
	"/v2/characters/:id/followers",
	"/v2/characters/:id/relationships/images",
	"/v2/characters/:id/relationships/followers",
	"/v2/lists",
	"/v2/lists/:id",
	"/v2/lists/:id/user",
	"/v2/lists/:id/images",
	"/v2/lists/:id/followers",
	"/v2/lists/:id/relationships/user",
	"/v2/lists/:id/relationships/images",
	"/v2/lists/:id/relationships/followers",
	"/v2/users",
	"/v2/users/@me",
	"/v2/users/:id",
	"/v2/users/:id/follow",
	"/v2/users/:id/discord",
	"/v2/users/:id/followers",
	"/v2/users/:id/following",
	"/v2/users/:id/liked-images",
	"/v2/users/:id/saved-images",
	"/v2/users/:id/followed-artists",
	"/v2/users/:id/followed-characters",
	"/v2/users/:id/followed-categories",
	"/v2/users/:id/relationships/discord",
	"/v2/users/:id/relationships/followers",
	"/v2/users/:id/relationships/following",
	"/v2/users/:id/relationships/liked-images",
	"/v2/users/:id/relationships/saved-images",
	"/v2/users/:id/relationships/followed-artists",
	"/v2/users/:id/relationships/followed-characters",
	"/v2/users/:id/relationships/followed-categories",
	"/v2/auth/token",
	"/v2/auth/token/revoke",
}

// Endpoints returns a copy of the endpoint listing.
func Endpoints() []string {
	return append([]string(nil), publicEndpoints...)
}

type endpointsAPIHandler struct {
	details APIDetails
}

func newEndpointsAPIHandler(version string) *endpointsAPIHandler {
	return &endpointsAPIHandler{details: APIDetails{
		Type: typeAPIDetails,
		ID:   "1",
		Attributes: APIDetailsAttributes{
			Endpoints:  Endpoints(),
			APIVersion: version,
		},
	}}
}

// Get returns the endpoint listing.
// GET /v2
//
// @Summary      List endpoints
// @Description  Returns every public endpoint path and the API version. Rate limited per client IP.
// @Tags         Root
// @Produce      json
// @Success      200  {object}  APIDetails
// @Failure      429  {object}  ErrorResponse
// @Router       / [get]
func (h *endpointsAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.details)
}
