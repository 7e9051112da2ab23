// Package httpapi exposes the coordinator's request surface over HTTP
// using go-chi/chi for routing. JSON request/response shapes follow the
// wire format the taker-side client expects: big integers travel as
// decimal strings, byte strings as 0x-prefixed hex.
package httpapi

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/coordinator"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/order"
)

// signedMetaTxDTO is the wire shape of SignedMetaTx.
type signedMetaTxDTO struct {
	SignerAddress         string `json:"signerAddress"`
	Salt                  string `json:"salt"`
	ExpirationTimeSeconds string `json:"expirationTimeSeconds"`
	GasPrice              string `json:"gasPrice"`
	Data                  string `json:"data"`
	Domain                struct {
		ChainID           int64  `json:"chainId"`
		VerifyingContract string `json:"verifyingContract"`
	} `json:"domain"`
	Signature string `json:"signature"`
}

func (d *signedMetaTxDTO) toDomain() (*coordinator.SignedMetaTx, *coordinatorerr.CoordinatorError) {
	tx := &coordinator.SignedMetaTx{
		DomainChainID: d.Domain.ChainID,
	}
	if d.SignerAddress != "" {
		tx.SignerAddress = common.HexToAddress(d.SignerAddress)
	}
	if d.Domain.VerifyingContract != "" {
		tx.VerifyingContract = common.HexToAddress(d.Domain.VerifyingContract)
	}
	if d.Salt != "" {
		n, ok := new(big.Int).SetString(d.Salt, 10)
		if !ok {
			return nil, coordinatorerr.NewSchemaViolation("signedTransaction.salt", coordinatorerr.ValidationIncorrectFormat, "salt must be a decimal-string integer")
		}
		tx.Salt = n
	}
	if d.ExpirationTimeSeconds != "" {
		n, ok := new(big.Int).SetString(d.ExpirationTimeSeconds, 10)
		if !ok {
			return nil, coordinatorerr.NewSchemaViolation("signedTransaction.expirationTimeSeconds", coordinatorerr.ValidationIncorrectFormat, "expirationTimeSeconds must be a decimal-string integer")
		}
		tx.ExpirationTimeSeconds = n
	}
	if d.GasPrice != "" {
		n, ok := new(big.Int).SetString(d.GasPrice, 10)
		if !ok {
			return nil, coordinatorerr.NewSchemaViolation("signedTransaction.gasPrice", coordinatorerr.ValidationIncorrectFormat, "gasPrice must be a decimal-string integer")
		}
		tx.GasPrice = n
	}
	if d.Data != "" {
		data, err := hexDecode(d.Data)
		if err != nil {
			return nil, coordinatorerr.NewSchemaViolation("signedTransaction.data", coordinatorerr.ValidationIncorrectFormat, "data must be 0x-prefixed hex")
		}
		tx.Data = data
	}
	if d.Signature != "" {
		sig, err := hexDecode(d.Signature)
		if err != nil {
			return nil, coordinatorerr.NewSchemaViolation("signedTransaction.signature", coordinatorerr.ValidationIncorrectFormat, "signature must be 0x-prefixed hex")
		}
		tx.Signature = sig
	}
	return tx, nil
}

// requestTransactionRequest is the body of POST /v2/request_transaction.
type requestTransactionRequest struct {
	SignedTransaction signedMetaTxDTO `json:"signedTransaction"`
	TxOrigin          string          `json:"txOrigin"`
}

func (r *requestTransactionRequest) toDomain(chainID int64) (*coordinator.ApprovalRequest, *coordinatorerr.CoordinatorError) {
	tx, verr := r.SignedTransaction.toDomain()
	if verr != nil {
		return nil, verr
	}
	req := &coordinator.ApprovalRequest{
		ChainID:      chainID,
		SignedMetaTx: tx,
	}
	if r.TxOrigin != "" {
		req.TxOrigin = common.HexToAddress(r.TxOrigin)
	}
	return req, nil
}

// outstandingFillSignatureDTO is one entry of a cancel acknowledgement's
// outstandingFillSignatures list.
type outstandingFillSignatureDTO struct {
	OrderHash             string   `json:"orderHash"`
	ApprovalSignatures    []string `json:"approvalSignatures"`
	ExpirationTimeSeconds int64    `json:"expirationTimeSeconds"`
	TakerAssetFillAmount  string   `json:"takerAssetFillAmount"`
}

// approvalResponseDTO serializes coordinator.ApprovalResponse. Exactly
// one of the two field groups is populated, mirroring the domain type.
type approvalResponseDTO struct {
	Signatures            []string `json:"signatures,omitempty"`
	ExpirationTimeSeconds int64    `json:"expirationTimeSeconds,omitempty"`

	OutstandingFillSignatures []outstandingFillSignatureDTO `json:"outstandingFillSignatures,omitempty"`
	CancellationSignatures    []string                      `json:"cancellationSignatures,omitempty"`
}

func approvalResponseFromDomain(resp *coordinator.ApprovalResponse) approvalResponseDTO {
	dto := approvalResponseDTO{
		ExpirationTimeSeconds: resp.ExpirationTimeSeconds,
		Signatures:            hexEncodeAll(resp.Signatures),
		CancellationSignatures: hexEncodeAll(resp.CancellationSignatures),
	}
	for _, o := range resp.OutstandingFillSignatures {
		amount := ""
		if o.TakerAssetFillAmount != nil {
			amount = o.TakerAssetFillAmount.String()
		}
		dto.OutstandingFillSignatures = append(dto.OutstandingFillSignatures, outstandingFillSignatureDTO{
			OrderHash:             o.OrderHash.Hex(),
			ApprovalSignatures:    hexEncodeAll(o.ApprovalSignatures),
			ExpirationTimeSeconds: o.ExpirationTimeSeconds,
			TakerAssetFillAmount:  amount,
		})
	}
	return dto
}

// softCancelsRequest is the body of POST /v2/soft_cancels.
type softCancelsRequest struct {
	OrderHashes []string `json:"orderHashes"`
}

func (r *softCancelsRequest) toDomain() ([]order.Hash, *coordinatorerr.CoordinatorError) {
	hashes := make([]order.Hash, len(r.OrderHashes))
	for i, h := range r.OrderHashes {
		if len(strings.TrimPrefix(h, "0x")) != 64 {
			return nil, coordinatorerr.NewSchemaViolation("orderHashes", coordinatorerr.ValidationIncorrectFormat, fmt.Sprintf("orderHashes[%d] is not a 32-byte hex hash", i))
		}
		hashes[i] = common.HexToHash(h)
	}
	return hashes, nil
}

type softCancelsResponse struct {
	OrderHashes []string `json:"orderHashes"`
}

type configurationResponse struct {
	ExpirationDurationSeconds int64   `json:"expirationDurationSeconds"`
	SelectiveDelayMS          int64   `json:"selectiveDelayMs"`
	SupportedChainIDs         []int64 `json:"supportedChainIds"`
}

type errorResponse struct {
	Code             coordinatorerr.Code              `json:"code"`
	Reason           string                           `json:"reason"`
	ValidationErrors []coordinatorerr.ValidationError `json:"validationErrors,omitempty"`
}

func errorResponseFromDomain(ce *coordinatorerr.CoordinatorError) errorResponse {
	return errorResponse{
		Code:             ce.Code,
		Reason:           ce.Reason,
		ValidationErrors: ce.ValidationErrors,
	}
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func hexEncodeAll(items [][]byte) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = "0x" + common.Bytes2Hex(b)
	}
	return out
}
