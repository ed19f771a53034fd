package htlc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/atomex-go/swapengine/internal/amount"
	"github.com/atomex-go/swapengine/internal/htlcbinding"
)

// SwapState mirrors the on-chain HTLC contract's lifecycle for a given
// swap ID.
type SwapState uint8

const (
	SwapStateEmpty SwapState = iota
	SwapStateActive
	SwapStateClaimed
	SwapStateRefunded
)

func (s SwapState) String() string {
	switch s {
	case SwapStateActive:
		return "active"
	case SwapStateClaimed:
		return "claimed"
	case SwapStateRefunded:
		return "refunded"
	default:
		return "empty"
	}
}

// ContractSwap is the on-chain record the HTLC contract keeps for one
// swap ID.
type ContractSwap struct {
	Sender     common.Address
	Receiver   common.Address
	Token      common.Address
	Amount     *big.Int
	SecretHash [32]byte
	LockTime   *big.Int
	State      SwapState
}

// IsNativeToken reports whether this swap moves the chain's native
// currency rather than an ERC-20.
func (s *ContractSwap) IsNativeToken() bool {
	return s.Token == common.Address{}
}

// EVMClient wraps the generated HTLC contract binding with the
// operations the transaction factory and watchers need: initiate,
// redeem, refund, and the SwapClaimed event (which carries the
// revealed secret) that the counter-party watcher listens for.
type EVMClient struct {
	client          *ethclient.Client
	contract        *htlcbinding.SwapHTLC
	contractAddress common.Address
	chainID         *big.Int
}

// NewEVMClient dials rpcURL and binds the deployed HTLC contract at
// contractAddress.
func NewEVMClient(ctx context.Context, rpcURL string, contractAddress common.Address) (*EVMClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("htlc: connect to %s: %w", rpcURL, err)
	}
	contract, err := htlcbinding.NewSwapHTLC(contractAddress, client)
	if err != nil {
		return nil, fmt.Errorf("htlc: bind contract: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("htlc: fetch chain id: %w", err)
	}
	return &EVMClient{client: client, contract: contract, contractAddress: contractAddress, chainID: chainID}, nil
}

func (c *EVMClient) Close() { c.client.Close() }

func (c *EVMClient) ChainID() *big.Int               { return c.chainID }
func (c *EVMClient) ContractAddress() common.Address { return c.contractAddress }

// DefaultGasSchedule returns the gas costs the HTLC contract's four
// entry points are known to consume, used by internal/amount's
// EthereumFee and GasLimitByOperation.
func DefaultGasSchedule() amount.GasSchedule {
	return amount.GasSchedule{
		amount.OpInitiate: {GasLimit: 120000},
		amount.OpAdd:      {GasLimit: 45000},
		amount.OpRedeem:   {GasLimit: 60000},
		amount.OpRefund:   {GasLimit: 45000},
	}
}

// CreateSwapNative initiates a native-currency HTLC.
func (c *EVMClient) CreateSwapNative(
	ctx context.Context,
	privateKey *ecdsa.PrivateKey,
	swapID [32]byte,
	receiver common.Address,
	secretHash [32]byte,
	lockTime *big.Int,
	value *big.Int,
) (*types.Transaction, error) {
	auth, err := c.newTransactor(ctx, privateKey)
	if err != nil {
		return nil, err
	}
	auth.Value = value
	return c.contract.CreateSwapNative(auth, swapID, receiver, secretHash, lockTime)
}

// Redeem claims a swap by revealing secret.
func (c *EVMClient) Redeem(ctx context.Context, privateKey *ecdsa.PrivateKey, swapID, secret [32]byte) (*types.Transaction, error) {
	auth, err := c.newTransactor(ctx, privateKey)
	if err != nil {
		return nil, err
	}
	return c.contract.Claim(auth, swapID, secret)
}

// Refund reclaims a swap once its lock_time has passed.
func (c *EVMClient) Refund(ctx context.Context, privateKey *ecdsa.PrivateKey, swapID [32]byte) (*types.Transaction, error) {
	auth, err := c.newTransactor(ctx, privateKey)
	if err != nil {
		return nil, err
	}
	return c.contract.Refund(auth, swapID)
}

// GetSwap reads a swap's on-chain record.
func (c *EVMClient) GetSwap(ctx context.Context, swapID [32]byte) (*ContractSwap, error) {
	result, err := c.contract.GetSwap(&bind.CallOpts{Context: ctx}, swapID)
	if err != nil {
		return nil, fmt.Errorf("htlc: get swap: %w", err)
	}
	return &ContractSwap{
		Sender:     result.Sender,
		Receiver:   result.Receiver,
		Token:      result.Token,
		Amount:     result.Amount,
		SecretHash: result.SecretHash,
		LockTime:   result.Timelock,
		State:      SwapState(result.State),
	}, nil
}

// SecretRevealedEvent is emitted when the counter-party redeems,
// exposing the secret this engine needs to redeem its own leg.
type SecretRevealedEvent struct {
	SwapID   [32]byte
	Secret   [32]byte
	TxHash   common.Hash
	BlockNum uint64
}

// WatchRedemptions subscribes to SwapClaimed events for the given swap
// IDs and bridges them into a typed channel, closing it when ctx is
// canceled.
func (c *EVMClient) WatchRedemptions(ctx context.Context, swapIDs [][32]byte) (<-chan *SecretRevealedEvent, error) {
	raw := make(chan *htlcbinding.SwapHTLCSwapClaimed, 10)
	sub, err := c.contract.WatchSwapClaimed(&bind.WatchOpts{Context: ctx}, raw, swapIDs, nil)
	if err != nil {
		close(raw)
		return nil, fmt.Errorf("htlc: watch redemptions: %w", err)
	}

	out := make(chan *SecretRevealedEvent, 10)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-raw:
				if ev == nil {
					return
				}
				out <- &SecretRevealedEvent{
					SwapID:   ev.SwapId,
					Secret:   ev.Secret,
					TxHash:   ev.Raw.TxHash,
					BlockNum: ev.Raw.BlockNumber,
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// WaitForSecret blocks until swapID's SwapClaimed event fires or ctx is
// done, returning the revealed secret.
func (c *EVMClient) WaitForSecret(ctx context.Context, swapID [32]byte) ([32]byte, error) {
	ch, err := c.WatchRedemptions(ctx, [][32]byte{swapID})
	if err != nil {
		return [32]byte{}, err
	}
	select {
	case ev := <-ch:
		if ev == nil {
			return [32]byte{}, fmt.Errorf("htlc: redemption channel closed without event")
		}
		return ev.Secret, nil
	case <-ctx.Done():
		return [32]byte{}, ctx.Err()
	}
}

// EstimateGasInitiate estimates gas for creating a native-currency
// swap, used when the default gas schedule needs live confirmation.
func (c *EVMClient) EstimateGasInitiate(
	ctx context.Context,
	from common.Address,
	swapID [32]byte,
	receiver common.Address,
	secretHash [32]byte,
	lockTime *big.Int,
	value *big.Int,
) (uint64, error) {
	abi, err := htlcbinding.SwapHTLCMetaData.GetAbi()
	if err != nil {
		return 0, err
	}
	data, err := abi.Pack("createSwapNative", swapID, receiver, secretHash, lockTime)
	if err != nil {
		return 0, err
	}
	return c.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.contractAddress, Value: value, Data: data})
}

// WaitForTx blocks until tx is mined or ctx expires.
func (c *EVMClient) WaitForTx(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.client, tx)
}

// WaitForTxWithTimeout is WaitForTx with a bounded timeout, for callers
// without their own context.
func (c *EVMClient) WaitForTxWithTimeout(tx *types.Transaction, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.WaitForTx(ctx, tx)
}

func (c *EVMClient) newTransactor(ctx context.Context, privateKey *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("htlc: create transactor: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}

// AddressFromPrivateKey derives the sender address from a private key.
func AddressFromPrivateKey(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}
