package coordinator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/approvalsigner"
	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/eventbus"
	"github.com/0xproject/coordinator-server/internal/order"
	"github.com/0xproject/coordinator-server/internal/txstore"
)

// dispatchCancel runs the cancel-family branch of S8: every in-scope
// order must be signed by its own maker, soft-cancels are applied
// sequentially, and a zero-expiration cancel-acknowledgement signature
// is returned alongside any fill approvals still outstanding on these
// orders.
func (c *Coordinator) dispatchCancel(
	ctx context.Context,
	bundle *chainregistry.ChainBundle,
	req *ApprovalRequest,
	inScopeOrders []*order.Order,
	txHash common.Hash,
) (*ApprovalResponse, error) {
	for _, o := range inScopeOrders {
		if o.MakerAddress != req.SignedMetaTx.SignerAddress {
			return nil, coordinatorerr.New(coordinatorerr.CodeOnlyMakerMayCancel, "signerAddress is not the maker of every in-scope order")
		}
	}

	hashes, err := orderHashes(inScopeOrders)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to compute order hash", err)
	}

	unlock := c.locks.Lock(perTakerLockKey(req.ChainID, req.SignedMetaTx.SignerAddress.Hex()))
	defer unlock()

	for _, h := range hashes {
		if err := c.orderStore.SoftCancel(ctx, h); err != nil {
			return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to persist soft-cancel", err)
		}
	}

	c.bus.Publish(eventbus.Event{
		Type:         eventbus.EventCancelRequestAccepted,
		ChainID:      req.ChainID,
		OrderHashes:  hexHashes(hashes),
		TakerAddress: req.SignedMetaTx.SignerAddress.Hex(),
	})

	signResult, err := approvalsigner.Sign(ctx, bundle, txHash, req.TxOrigin, inScopeOrders, 0)
	if err != nil {
		return nil, err
	}

	zeroAmounts := make([]*big.Int, len(hashes))
	for i := range zeroAmounts {
		zeroAmounts[i] = big.NewInt(0)
	}
	record := &txstore.Record{
		TransactionHash:       txHash,
		TxOrigin:              req.TxOrigin,
		TakerAddress:          req.SignedMetaTx.SignerAddress,
		Signatures:            signResult.Signatures,
		ExpirationTimeSeconds: 0,
		OrderHashes:           hashes,
		TakerAssetFillAmounts: zeroAmounts,
	}
	if err := c.txStore.Create(ctx, record); err != nil {
		if err == txstore.ErrAlreadyExists {
			return nil, coordinatorerr.New(coordinatorerr.CodeTransactionAlreadyUsed, "this meta-transaction has already been used")
		}
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to persist cancel acknowledgement", err)
	}

	outstanding, err := c.collectOutstandingFillSignatures(ctx, hashes)
	if err != nil {
		return nil, err
	}

	return &ApprovalResponse{
		OutstandingFillSignatures: outstanding,
		CancellationSignatures:    signResult.Signatures,
	}, nil
}

// collectOutstandingFillSignatures finds every unexpired fill approval
// touching any of orderHashes, regardless of taker, and reshapes them
// into the per-order view the cancel response returns.
func (c *Coordinator) collectOutstandingFillSignatures(ctx context.Context, orderHashes []order.Hash) ([]OutstandingFillSignature, error) {
	records, err := c.txStore.Find(ctx, txstore.Query{
		OrderHashes:   orderHashes,
		AnyKey:        true,
		UnexpiredOnly: true,
	})
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to query outstanding fill approvals", err)
	}

	inScope := make(map[order.Hash]bool, len(orderHashes))
	for _, h := range orderHashes {
		inScope[h] = true
	}

	var outstanding []OutstandingFillSignature
	for _, r := range records {
		if r.ExpirationTimeSeconds == 0 {
			continue // cancel-acknowledgement record, not a fill approval
		}
		for i, oh := range r.OrderHashes {
			if !inScope[oh] {
				continue
			}
			var amount *big.Int
			if i < len(r.TakerAssetFillAmounts) {
				amount = r.TakerAssetFillAmounts[i]
			}
			outstanding = append(outstanding, OutstandingFillSignature{
				OrderHash:             oh,
				ApprovalSignatures:    r.Signatures,
				ExpirationTimeSeconds: r.ExpirationTimeSeconds,
				TakerAssetFillAmount:  amount,
			})
		}
	}
	return outstanding, nil
}

func hexHashes(hashes []order.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}
