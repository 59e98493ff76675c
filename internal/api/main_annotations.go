// @title           nekos-api
// @version         2.0.0-alpha
// @description     Public endpoint listing and the resource schema registry. Writes need an operator API key.
// @BasePath        /v2
// @securityDefinitions.apikey BearerToken
// @in              header
// @name            Authorization
// @description     Type "Bearer" followed by a space and your operator key. Example: "Bearer nk_xxx"

// Package api serves the /v2 HTTP surface as JSON:API documents.
package api
