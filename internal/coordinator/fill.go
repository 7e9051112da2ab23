package coordinator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/approvalsigner"
	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/eventbus"
	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
	"github.com/0xproject/coordinator-server/internal/txstore"
)

// dispatchFill runs the fill-family branch of S8: derive per-order
// allocations, validate conservation before and (if configured) after a
// selective delay, check the requested expiration, then sign and
// persist the approval.
func (c *Coordinator) dispatchFill(
	ctx context.Context,
	bundle *chainregistry.ChainBundle,
	req *ApprovalRequest,
	inScopeOrders []*order.Order,
	inScopeTakerAmounts []*big.Int,
	decoded *oracle.DecodedCall,
	class oracle.FunctionClass,
	txHash common.Hash,
	now func() time.Time,
) (*ApprovalResponse, error) {
	hashes, err := orderHashes(inScopeOrders)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to compute order hash", err)
	}

	allocations, err := deriveAllocations(ctx, bundle, inScopeOrders, inScopeTakerAmounts, decoded, class)
	if err != nil {
		return nil, err
	}

	takerKeyKind := txstore.ByTakerAddress
	takerKey := req.SignedMetaTx.SignerAddress
	lockIdentity := req.SignedMetaTx.SignerAddress.Hex()
	if c.cfg.IsTakerWhitelisted(req.SignedMetaTx.SignerAddress) {
		takerKeyKind = txstore.ByTxOrigin
		takerKey = req.TxOrigin
		lockIdentity = req.TxOrigin.Hex()
	}

	unlock := c.locks.Lock(perTakerLockKey(req.ChainID, lockIdentity))
	defer unlock()

	validate := func() error {
		return c.validateFillConservation(ctx, hashes, allocations, inScopeOrders, takerKeyKind, takerKey)
	}

	if err := validate(); err != nil {
		return nil, err
	}

	c.bus.Publish(eventbus.Event{
		Type:            eventbus.EventFillRequestReceived,
		ChainID:         req.ChainID,
		OrderHashes:     hexHashes(hashes),
		TakerAddress:    req.SignedMetaTx.SignerAddress.Hex(),
		TransactionHash: txHash.Hex(),
	})

	if c.cfg.SelectiveDelayMS > 0 {
		select {
		case <-time.After(time.Duration(c.cfg.SelectiveDelayMS) * time.Millisecond):
		case <-ctx.Done():
			return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "request cancelled during selective delay", ctx.Err())
		}
		if err := validate(); err != nil {
			return nil, err
		}
	}

	approvalExpiration := now().Unix() + c.cfg.ExpirationDurationSeconds
	if req.SignedMetaTx.ExpirationTimeSeconds != nil && req.SignedMetaTx.ExpirationTimeSeconds.Cmp(big.NewInt(approvalExpiration)) > 0 {
		return nil, coordinatorerr.New(coordinatorerr.CodeTransactionExpirationTooHigh,
			"signedTransaction.expirationTimeSeconds exceeds the approval's expiration")
	}

	signResult, err := approvalsigner.Sign(ctx, bundle, txHash, req.TxOrigin, inScopeOrders, approvalExpiration)
	if err != nil {
		return nil, err
	}

	record := &txstore.Record{
		TransactionHash:       txHash,
		TxOrigin:              req.TxOrigin,
		TakerAddress:          req.SignedMetaTx.SignerAddress,
		Signatures:            signResult.Signatures,
		ExpirationTimeSeconds: approvalExpiration,
		OrderHashes:           hashes,
		TakerAssetFillAmounts: allocations,
	}
	if err := c.txStore.Create(ctx, record); err != nil {
		if err == txstore.ErrAlreadyExists {
			return nil, coordinatorerr.New(coordinatorerr.CodeTransactionAlreadyUsed, "this meta-transaction has already been used")
		}
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to persist approval", err)
	}

	c.bus.Publish(eventbus.Event{
		Type:                  eventbus.EventFillRequestAccepted,
		ChainID:               req.ChainID,
		OrderHashes:           hexHashes(hashes),
		TakerAddress:          req.SignedMetaTx.SignerAddress.Hex(),
		TransactionHash:       txHash.Hex(),
		FunctionName:          string(decoded.FunctionName),
		ApprovalSignatures:    hexSignatures(signResult.Signatures),
		ExpirationTimeSeconds: approvalExpiration,
	})

	return &ApprovalResponse{
		Signatures:            signResult.Signatures,
		ExpirationTimeSeconds: approvalExpiration,
	}, nil
}

// validateFillConservation implements (S8b)/(S8e): soft-cancelled
// in-scope orders and orders whose cumulative unexpired fill would
// exceed their takerAssetAmount both abort the request with
// FillNotAllowed, naming every offending order hash.
func (c *Coordinator) validateFillConservation(
	ctx context.Context,
	hashes []order.Hash,
	allocations []*big.Int,
	orders []*order.Order,
	takerKeyKind txstore.TakerKeyKind,
	takerKey common.Address,
) error {
	softCancelled, err := c.orderStore.FindSoftCancelled(ctx, hashes)
	if err != nil {
		return coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to query soft-cancelled orders", err)
	}
	softCancelledSet := make(map[order.Hash]bool, len(softCancelled))
	for _, h := range softCancelled {
		softCancelledSet[h] = true
	}

	var candidates []order.Hash
	candidateIndex := make(map[order.Hash]int)
	for i, h := range hashes {
		if softCancelledSet[h] {
			continue
		}
		candidateIndex[h] = i
		candidates = append(candidates, h)
	}

	var violators []string
	if len(candidates) > 0 {
		sums, err := c.txStore.PerOrderFillSum(ctx, txstore.Query{
			OrderHashes:   candidates,
			KeyKind:       takerKeyKind,
			Key:           takerKey,
			UnexpiredOnly: true,
		})
		if err != nil {
			return coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to query prior fills", err)
		}
		for _, h := range candidates {
			i := candidateIndex[h]
			alloc := allocations[i]
			if alloc == nil {
				alloc = big.NewInt(0)
			}
			total := new(big.Int).Add(sums[h], alloc)
			if total.Cmp(orders[i].TakerAssetAmount) > 0 {
				violators = append(violators, h.Hex())
			}
		}
	}

	if len(softCancelledSet) > 0 || len(violators) > 0 {
		return coordinatorerr.NewFillNotAllowed(hexHashes(softCancelled), violators)
	}
	return nil
}

func hexSignatures(sigs [][]byte) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = common.Bytes2Hex(s)
	}
	return out
}
