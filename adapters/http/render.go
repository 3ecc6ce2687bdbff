package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/pkg/jsonapi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// RetryAfter is the delay suggested to clients when a settlement cannot be confirmed yet.
const RetryAfter = 15 * time.Second

// writeAppError maps application errors to JSON:API error responses.
// Anything outside the application taxonomy is logged and reported as 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Wallet authentication failed"))
	case errors.Is(err, app.ErrForbidden):
		jsonapi.WriteError(w, jsonapi.ErrForbidden(""))
	case errors.Is(err, app.ErrNotFound):
		jsonapi.WriteError(w, jsonapi.ErrNotFound(resourceName(r)))
	case errors.Is(err, app.ErrNothingToSettle):
		jsonapi.WriteError(w, jsonapi.ErrNothingToSettle(urlParam(r, "apiID")))
	case errors.Is(err, app.ErrConflict):
		jsonapi.WriteError(w, jsonapi.ErrConflict("The request conflicted with a concurrent update; retry"))
	case errors.Is(err, app.ErrSettlementMismatch):
		jsonapi.WriteError(w, jsonapi.ErrSettlementMismatch(urlParam(r, "batchID"), err.Error()))
	case errors.Is(err, app.ErrInvalidInput):
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusUnprocessableEntity, "invalid_input", "Invalid Input").Detail(err.Error()).Build())
	case errors.Is(err, app.ErrUnconfirmed):
		secs := int(RetryAfter / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		jsonapi.WriteError(w, jsonapi.ErrUnconfirmed(urlParam(r, "batchID"), secs))
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("Request timed out"))
	default:
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
	}
}

func resourceName(r *http.Request) string {
	switch {
	case urlParam(r, "batchID") != "":
		return "settlement batch"
	case urlParam(r, "apiID") != "" || urlParam(r, "id") != "":
		return "api"
	default:
		return "resource"
	}
}

// -----------------------------------------------------------------------------
// Resources
// -----------------------------------------------------------------------------

func userResource(u identity.User) jsonapi.Resource {
	return jsonapi.NewResource("users", u.ID).
		Attr("wallet_address", u.Address).
		Attr("created_at", u.CreatedAt).
		Build()
}

func apiResource(a catalog.API) jsonapi.Resource {
	return jsonapi.NewResource("apis", a.ID).
		Attr("name", a.Name).
		Attr("price_per_request", wei.String(a.PricePerRequest)).
		Attr("contract_api_id", catalog.ContractID(a.ID).String()).
		Attr("chain_mirrored", a.ChainMirrored).
		Attr("created_at", a.CreatedAt).
		Attr("updated_at", a.UpdatedAt).
		BelongsTo("owner", "users", a.OwnerID).
		Link("/api/apis/" + a.ID).
		Build()
}

func usageResource(userID, apiID string, s usage.Snapshot) jsonapi.Resource {
	return jsonapi.NewResource("usage", userID+":"+apiID).
		Attr("request_count", s.RequestCount).
		Attr("pending_payment", wei.String(s.PendingPayment)).
		Attr("pending_payment_eth", wei.FormatEther(s.PendingPayment)).
		BelongsTo("api", "apis", apiID).
		BelongsTo("user", "users", userID).
		Build()
}

func batchResource(b settlement.Batch) *jsonapi.ResourceBuilder {
	return jsonapi.NewResource("settlements", b.ID).
		Attr("state", string(b.State)).
		Attr("payer", b.PayerAddress).
		Attr("api_owner", b.OwnerAddress).
		Attr("contract_api_id", wei.String(b.ContractAPIID)).
		Attr("request_count", b.RequestCount).
		Attr("amount", wei.String(b.Amount)).
		Attr("amount_eth", wei.FormatEther(b.Amount)).
		Attr("closed_at", b.ClosedAt).
		AttrIf(b.SettleTxHash != "", "transaction_hash", b.SettleTxHash).
		AttrIf(b.SettledAt != nil, "settled_at", b.SettledAt).
		BelongsTo("api", "apis", b.APIID).
		BelongsTo("user", "users", b.UserID).
		Link("/api/settlements/" + b.ID)
}

func instructionResource(in settlement.Instruction, calldata []byte) jsonapi.Resource {
	rb := batchResource(in.Batch).
		Attr("mode", string(in.Mode)).
		Attr("pay_to", in.PayTo).
		Attr("value", wei.String(in.Value))
	if in.Call != nil {
		rb.Attr("settle_call", map[string]any{
			"batch_id":      "0x" + in.Call.BatchID,
			"user":          in.Call.User,
			"api_id":        in.Call.APIID.String(),
			"request_count": in.Call.RequestCount.String(),
		})
	}
	if len(calldata) > 0 {
		rb.Attr("calldata", hexutil.Encode(calldata))
	}
	return rb.Build()
}
