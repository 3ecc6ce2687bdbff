package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/pkg/jsonapi"
)

// Settle closes the caller's open usage for an API into a batch and returns
// the payment instruction.
//
//	@Summary		Close settlement batch
//	@Description	Freezes the caller's open usage for an API into a batch and returns the payment instruction
//	@Tags			Settlements
//	@Produce		json
//	@Param			apiID	path		string	true	"API ID"
//	@Success		201	{object}	jsonapi.Document	"Payment instruction"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		404	{object}	jsonapi.Document	"API not found"
//	@Failure		422	{object}	jsonapi.Document	"No usage to settle"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/settle/{apiID} [post]
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	in, err := h.settlement.CloseBatch(r.Context(), u.ID, urlParam(r, "apiID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	jsonapi.WriteCreated(w, instructionResource(in, h.calldata(in)), "/api/settlements/"+in.Batch.ID)
}

type confirmRequest struct {
	TransactionHash string `json:"transaction_hash" validate:"required"`
}

// ConfirmSettlement verifies the payer's transaction against a batch.
//
//	@Summary		Confirm settlement
//	@Description	Verifies the payer's transaction against a batch and marks it settled
//	@Tags			Settlements
//	@Accept			json
//	@Produce		json
//	@Param			batchID	path	string				true	"Batch ID"
//	@Param			body	body	http.confirmRequest	true	"Transaction hash"
//	@Success		200	{object}	jsonapi.Document	"Settled batch"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		404	{object}	jsonapi.Document	"Batch not found"
//	@Failure		409	{object}	jsonapi.Document	"Transaction does not match the batch"
//	@Failure		422	{object}	jsonapi.Document	"Validation failed"
//	@Failure		503	{object}	jsonapi.Document	"Transaction not confirmed yet"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/confirm-settlement/{batchID} [post]
func (h *Handler) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		return
	}
	if req.TransactionHash == "" {
		req.TransactionHash = r.URL.Query().Get("transaction_hash")
	}
	req.TransactionHash = strings.TrimSpace(req.TransactionHash)
	if err := h.validate.Struct(req); err != nil {
		jsonapi.WriteError(w, validationErrors(err)...)
		return
	}

	ctx := r.Context()
	batchID := urlParam(r, "batchID")
	b, err := h.settlement.GetBatch(ctx, batchID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if b.UserID != mustUser(r).ID {
		writeAppError(w, r, h.logger, app.ErrNotFound)
		return
	}

	res, err := h.settlement.ConfirmSettlement(ctx, batchID, req.TransactionHash)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	rb := batchResource(res.Batch)
	if res.AlreadySettled {
		rb.Meta("already_settled", true).Meta("message", app.ErrAlreadySettled.Error())
	}
	jsonapi.WriteResource(w, http.StatusOK, rb.Build())
}

// ListSettlements lists the caller's batches, newest first.
// Supports ?state=closed|settled, ?api_id= and ?limit=.
//
//	@Summary		List settlements
//	@Tags			Settlements
//	@Produce		json
//	@Param			state	query		string	false	"closed or settled"
//	@Param			api_id	query		string	false	"API ID"
//	@Param			limit	query		int		false	"Maximum number of batches"
//	@Success		200	{object}	jsonapi.Document	"Batches"
//	@Failure		400	{object}	jsonapi.Document	"Invalid limit"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/settlements [get]
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := usage.Filter{
		UserID: mustUser(r).ID,
		APIID:  q.Get("api_id"),
		State:  usage.State(q.Get("state")),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
				Detail("limit must be a positive integer").
				Parameter("limit").
				Build())
			return
		}
		f.Limit = n
	}

	batches, err := h.settlement.ListBatches(r.Context(), f)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	resources := make([]jsonapi.Resource, 0, len(batches))
	for _, b := range batches {
		resources = append(resources, batchResource(b).Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources)
}

// GetSettlement returns a batch visible to its payer or the API owner.
// Closed batches include the payment instruction.
//
//	@Summary		Get settlement
//	@Tags			Settlements
//	@Produce		json
//	@Param			batchID	path		string	true	"Batch ID"
//	@Success		200	{object}	jsonapi.Document	"Batch"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Failure		404	{object}	jsonapi.Document	"Batch not found"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/settlements/{batchID} [get]
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	b, err := h.settlement.GetBatch(r.Context(), urlParam(r, "batchID"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if !canView(mustUser(r), b) {
		writeAppError(w, r, h.logger, app.ErrNotFound)
		return
	}

	if b.Settled() {
		jsonapi.WriteResource(w, http.StatusOK, batchResource(b).Build())
		return
	}
	in := h.settlement.Instruction(b)
	jsonapi.WriteResource(w, http.StatusOK, instructionResource(in, h.calldata(in)))
}

// calldata encodes the contract call of an instruction. Encoding failures are
// logged and the instruction is served without calldata.
func (h *Handler) calldata(in settlement.Instruction) []byte {
	if in.Call == nil || h.encoder == nil {
		return nil
	}
	data, err := h.encoder.EncodeSettleCall(*in.Call)
	if err != nil {
		h.logger.Error().Err(err).Str("batch_id", in.Batch.ID).Msg("failed to encode settle call")
		return nil
	}
	return data
}

func canView(u identity.User, b settlement.Batch) bool {
	return b.UserID == u.ID || identity.SameAddress(b.OwnerAddress, u.Address)
}
