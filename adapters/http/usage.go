package http

import (
	"net/http"

	"github.com/artpar/trustmeter/pkg/jsonapi"
)

// RecordUsage charges one request against an API to the caller.
//
//	@Summary		Record usage
//	@Description	Charges one request against an API to the caller at the current price
//	@Tags			Usage
//	@Produce		json
//	@Param			apiID	path		string	true	"API ID"
//	@Param			api_id	query		string	false	"API ID for /api/log-usage"
//	@Success		200	{object}	jsonapi.Document	"Open usage"
//	@Failure		400	{object}	jsonapi.Document	"Missing API ID"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		404	{object}	jsonapi.Document	"API not found"
//	@Failure		409	{object}	jsonapi.Document	"Write conflict"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/usage/{apiID} [post]
//	@Router			/api/log-usage [post]
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	apiID := apiIDParam(r)
	if apiID == "" {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail("api_id is required").
			Parameter("api_id").
			Build())
		return
	}

	u := mustUser(r)
	snap, err := h.usage.RecordUsage(r.Context(), u.ID, apiID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, usageResource(u.ID, apiID, snap))
}

// GetUsage returns the caller's open usage for an API.
//
//	@Summary		Get open usage
//	@Tags			Usage
//	@Produce		json
//	@Param			apiID	path		string	true	"API ID"
//	@Success		200	{object}	jsonapi.Document	"Open usage"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		404	{object}	jsonapi.Document	"API not found"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/usage/{apiID} [get]
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	apiID := apiIDParam(r)
	u := mustUser(r)
	snap, err := h.usage.GetOpenUsage(r.Context(), u.ID, apiID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, usageResource(u.ID, apiID, snap))
}

// apiIDParam reads the API ID from the route, falling back to the api_id query parameter.
func apiIDParam(r *http.Request) string {
	if id := urlParam(r, "apiID"); id != "" {
		return id
	}
	return r.URL.Query().Get("api_id")
}
