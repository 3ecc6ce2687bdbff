package http

import (
	"net/http"
	"strings"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
)

type registerAPIRequest struct {
	Name            string    `json:"name" validate:"required,max=128"`
	PricePerRequest weiAmount `json:"price_per_request" validate:"required,wei"`
}

// RegisterAPI registers an API owned by the caller.
//
//	@Summary		Register API
//	@Description	Registers an API owned by the caller and mirrors it to the settlement contract when configured
//	@Tags			APIs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		http.registerAPIRequest	true	"API name and price in wei"
//	@Success		201	{object}	jsonapi.Document	"API"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		409	{object}	jsonapi.Document	"Duplicate API"
//	@Failure		422	{object}	jsonapi.Document	"Validation failed"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/apis [post]
//	@Router			/api/register [post]
func (h *Handler) RegisterAPI(w http.ResponseWriter, r *http.Request) {
	var req registerAPIRequest
	if err := decodeBody(r, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		return
	}
	// Query parameters accepted for form-less clients.
	q := r.URL.Query()
	if req.Name == "" {
		req.Name = q.Get("api_name")
	}
	if req.PricePerRequest == "" {
		req.PricePerRequest = weiAmount(q.Get("price_per_request"))
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validate.Struct(req); err != nil {
		jsonapi.WriteError(w, validationErrors(err)...)
		return
	}
	price, _ := wei.Parse(string(req.PricePerRequest))

	api, err := h.catalog.Register(r.Context(), mustUser(r).ID, req.Name, price)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteCreated(w, apiResource(api), "/api/apis/"+api.ID)
}

// ListAPIs returns every registered API.
//
//	@Summary		List APIs
//	@Tags			APIs
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"APIs"
//	@Router			/api/apis [get]
//	@Router			/api/available-apis [get]
func (h *Handler) ListAPIs(w http.ResponseWriter, r *http.Request) {
	apis, err := h.catalog.List(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeAPIs(w, apis)
}

// ListMyAPIs returns the APIs owned by the caller.
//
//	@Summary		List my APIs
//	@Tags			APIs
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"APIs"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/apis/mine [get]
//	@Router			/api/my-apis [get]
func (h *Handler) ListMyAPIs(w http.ResponseWriter, r *http.Request) {
	apis, err := h.catalog.ListByOwner(r.Context(), mustUser(r).ID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeAPIs(w, apis)
}

// GetAPI returns one API.
//
//	@Summary		Get API
//	@Tags			APIs
//	@Produce		json
//	@Param			id	path		string	true	"API ID"
//	@Success		200	{object}	jsonapi.Document	"API"
//	@Failure		404	{object}	jsonapi.Document	"API not found"
//	@Router			/api/apis/{id} [get]
func (h *Handler) GetAPI(w http.ResponseWriter, r *http.Request) {
	api, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, apiResource(api))
}

type updatePriceRequest struct {
	PricePerRequest weiAmount `json:"price_per_request" validate:"required,wei"`
}

// UpdatePrice changes the price of an API owned by the caller.
//
//	@Summary		Update price
//	@Description	Changes the price per request. Open usage keeps the price it accrued at
//	@Tags			APIs
//	@Accept			json
//	@Produce		json
//	@Param			id		path	string					true	"API ID"
//	@Param			body	body	http.updatePriceRequest	true	"Price in wei"
//	@Success		200	{object}	jsonapi.Document	"API"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		403	{object}	jsonapi.Document	"Caller does not own the API"
//	@Failure		404	{object}	jsonapi.Document	"API not found"
//	@Failure		422	{object}	jsonapi.Document	"Validation failed"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/apis/{id}/price [put]
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := decodeBody(r, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		jsonapi.WriteError(w, validationErrors(err)...)
		return
	}
	price, _ := wei.Parse(string(req.PricePerRequest))

	api, err := h.catalog.UpdatePrice(r.Context(), mustUser(r).ID, chi.URLParam(r, "id"), price)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, apiResource(api))
}

func writeAPIs(w http.ResponseWriter, apis []catalog.API) {
	resources := make([]jsonapi.Resource, 0, len(apis))
	for _, a := range apis {
		resources = append(resources, apiResource(a))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources)
}
