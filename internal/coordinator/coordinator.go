// Package coordinator implements the approval state machine: the
// orchestration core that turns a signed meta-transaction into either a
// granted fill approval or a recorded soft-cancel, enforcing the
// concurrency and conservation rules described alongside each stage
// below.
package coordinator

import (
	"context"
	"time"

	"github.com/0xproject/coordinator-server/internal/audit"
	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/eventbus"
	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
	"github.com/0xproject/coordinator-server/internal/orderstore"
	"github.com/0xproject/coordinator-server/internal/txstore"
)

// Coordinator is the orchestration core. One instance serves every
// chain in the registry; per-chain isolation comes entirely from the
// registry lookup and the per-(chainId, takerKey) lock.
type Coordinator struct {
	registry   *chainregistry.Registry
	orderStore orderstore.Store
	txStore    txstore.Store
	bus        *eventbus.Bus
	cfg        *config.Config
	locks      *keyMutex
	audit      *audit.Logger
}

// New builds a Coordinator over its collaborators. Every argument is
// read concurrently from many request tasks; none of the constructor's
// callees may retain it exclusively.
func New(cfg *config.Config, registry *chainregistry.Registry, orderStore orderstore.Store, txStore txstore.Store, bus *eventbus.Bus) *Coordinator {
	return &Coordinator{
		registry:   registry,
		orderStore: orderStore,
		txStore:    txStore,
		bus:        bus,
		cfg:        cfg,
		locks:      newKeyMutex(),
	}
}

// WithAuditLogger attaches an audit trail that records every
// RequestApproval decision. Optional: a Coordinator with no audit
// logger set behaves exactly as before.
func (c *Coordinator) WithAuditLogger(l *audit.Logger) *Coordinator {
	c.audit = l
	return c
}

func (c *Coordinator) logDecision(chainID int64, operation, transactionHash, takerAddress string, err error) {
	if c.audit == nil {
		return
	}
	entry := audit.Entry{
		Timestamp:       time.Now(),
		ChainID:         chainID,
		Operation:       operation,
		TransactionHash: transactionHash,
		TakerAddress:    takerAddress,
		Status:          "granted",
	}
	if err != nil {
		entry.Status = "rejected"
		if ce, ok := err.(*coordinatorerr.CoordinatorError); ok {
			entry.ErrorCode = string(ce.Code)
		}
	}
	// Best-effort: a failing audit write must never fail the request it
	// describes.
	_ = c.audit.Log(entry)
}

// Configuration is the response to ReadConfiguration.
type Configuration struct {
	ExpirationDurationSeconds int64
	SelectiveDelayMS          int64
	SupportedChainIDs         []int64
}

// ReadConfiguration returns the coordinator's immutable process
// configuration.
func (c *Coordinator) ReadConfiguration() Configuration {
	return Configuration{
		ExpirationDurationSeconds: c.cfg.ExpirationDurationSeconds,
		SelectiveDelayMS:          c.cfg.SelectiveDelayMS,
		SupportedChainIDs:         c.registry.SupportedChainIDs(),
	}
}

// ListSoftCancelled returns the subset of orderHashes that are
// currently soft-cancelled on chainID.
func (c *Coordinator) ListSoftCancelled(ctx context.Context, chainID int64, orderHashes []order.Hash) (hashes []order.Hash, err error) {
	defer func() {
		c.logDecision(chainID, "soft_cancels", "", "", err)
	}()

	if _, err := c.registry.Lookup(chainID); err != nil {
		return nil, err
	}
	return c.orderStore.FindSoftCancelled(ctx, orderHashes)
}

// RequestApproval runs a signed meta-transaction through the full
// approval pipeline: schema validation, chain lookup, decode and
// classify, order reconstruction, in-scope filtering, replay guard,
// signature verification, and finally class-specific dispatch to the
// cancel-family or fill-family path.
func (c *Coordinator) RequestApproval(ctx context.Context, req *ApprovalRequest) (resp *ApprovalResponse, err error) {
	defer func() {
		c.logDecision(req.ChainID, "request_transaction", req.SignedMetaTx.Hash().Hex(), req.SignedMetaTx.SignerAddress.Hex(), err)
	}()

	// S1: schema.
	if verr := req.validate(req.ChainID); verr != nil {
		return nil, verr
	}

	// S2: chain lookup.
	bundle, err := c.registry.Lookup(req.ChainID)
	if err != nil {
		return nil, err
	}

	// S3: decode + classify.
	decoded, err := bundle.Oracle.Decoder.DecodeCalldata(req.SignedMetaTx.Data)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeDecodingFailed, "failed to decode meta-transaction calldata", err)
	}
	class, ok := oracle.ClassOf(decoded.FunctionName)
	if !ok {
		return nil, coordinatorerr.New(coordinatorerr.CodeUnsupportedFunction, "unsupported function: "+string(decoded.FunctionName))
	}

	// S4: reconstruct orders with exchange address and chain id.
	for _, o := range decoded.Orders {
		o.ExchangeAddress = bundle.CoordinatorAddress
		o.ChainID = req.ChainID
	}

	// S5: in-scope filter.
	inScopeOrders, inScopeTakerAmounts := filterInScope(bundle, decoded, class)
	if len(inScopeOrders) == 0 {
		return nil, coordinatorerr.New(coordinatorerr.CodeNoCoordinatorOrdersIncluded, "no orders in this batch belong to this coordinator")
	}

	// S6: replay guard.
	txHash := req.SignedMetaTx.Hash()
	existing, err := c.txStore.FindByHash(ctx, txHash)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "transaction store lookup failed", err)
	}
	if existing != nil {
		return nil, coordinatorerr.New(coordinatorerr.CodeTransactionAlreadyUsed, "this meta-transaction has already been used")
	}

	// S7: signature verify.
	valid, err := bundle.Oracle.Verifier.VerifyMetaTxSignature(ctx, req.SignedMetaTx.SignerAddress, txHash, req.SignedMetaTx.Signature)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "signature verification failed", err)
	}
	if !valid {
		return nil, coordinatorerr.New(coordinatorerr.CodeInvalidMetaTxSignature, "signerAddress did not sign this meta-transaction")
	}

	isCancel := class == oracle.ClassCancelOne || class == oracle.ClassCancelBatch
	if isCancel {
		return c.dispatchCancel(ctx, bundle, req, inScopeOrders, txHash)
	}
	return c.dispatchFill(ctx, bundle, req, inScopeOrders, inScopeTakerAmounts, decoded, class, txHash, time.Now)
}
