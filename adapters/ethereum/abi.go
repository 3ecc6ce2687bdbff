package ethereum

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/ports"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// settlementABI is the subset of the settlement contract the service reads and encodes.
const settlementABI = `[
	{"type":"function","name":"registerApi","stateMutability":"nonpayable",
	 "inputs":[{"name":"_name","type":"string"},{"name":"_pricePerRequest","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"settlePayment","stateMutability":"payable",
	 "inputs":[{"name":"_batchId","type":"bytes32"},{"name":"_user","type":"address"},
	           {"name":"_apiId","type":"uint256"},{"name":"_requestCount","type":"uint256"}],
	 "outputs":[]}
]`

const (
	methodRegisterAPI   = "registerApi"
	methodSettlePayment = "settlePayment"
)

var contractABI = mustParseABI(settlementABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse settlement abi: %v", err))
	}
	return parsed
}

// Encoder packs settlement contract calls.
type Encoder struct{}

// EncodeSettleCall packs settlePayment(batchId, user, apiId, requestCount).
func (Encoder) EncodeSettleCall(call settlement.SettleCall) ([]byte, error) {
	batchID, err := settlement.BatchIDBytes(call.BatchID)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(call.User) || call.APIID == nil || call.RequestCount == nil {
		return nil, errors.New("incomplete settle call")
	}
	return contractABI.Pack(methodSettlePayment, batchID, common.HexToAddress(call.User), call.APIID, call.RequestCount)
}

var _ ports.SettlementEncoder = Encoder{}

// encodeRegisterAPI packs registerApi(name, pricePerRequest).
func encodeRegisterAPI(name string, price *big.Int) ([]byte, error) {
	return contractABI.Pack(methodRegisterAPI, name, price)
}

// DecodeSettleCall unpacks settlePayment calldata. It returns nil, nil for
// calldata of any other method.
func DecodeSettleCall(data []byte) (*settlement.SettleCall, error) {
	method := contractABI.Methods[methodSettlePayment]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, nil
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack settlePayment: %w", err)
	}
	if len(args) != 4 {
		return nil, fmt.Errorf("unpack settlePayment: got %d arguments", len(args))
	}

	batchID, ok1 := args[0].([32]byte)
	user, ok2 := args[1].(common.Address)
	apiID, ok3 := args[2].(*big.Int)
	count, ok4 := args[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("unpack settlePayment: unexpected argument types")
	}

	return &settlement.SettleCall{
		BatchID:      common.Bytes2Hex(batchID[:]),
		User:         strings.ToLower(user.Hex()),
		APIID:        apiID,
		RequestCount: count,
	}, nil
}
