package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPBackend is the one concrete Backend this package ships: a thin
// client for mempool.space-compatible REST APIs (mempool.space,
// litecoinspace.org, and self-hosted forks), which cover the
// BitcoinLike chains. Like internal/signer.InMemorySigner is the
// reference stand-in for the external wallet boundary, this is the
// reference stand-in for the external blockchain-API boundary: a real
// deployment swaps it for whatever production client it needs without
// this package's Backend interface changing.
type HTTPBackend struct {
	baseURL     string
	backendType Type
	httpClient  *http.Client
	mu          sync.RWMutex
	connected   bool
}

// NewHTTPBackend creates a reference Backend against an
// Esplora/mempool.space-compatible REST API at baseURL, tagged with
// the given Type for wire-identification purposes.
func NewHTTPBackend(baseURL string, backendType Type) *HTTPBackend {
	return &HTTPBackend{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		backendType: backendType,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Type returns the Type this backend was constructed with.
func (m *HTTPBackend) Type() Type {
	return m.backendType
}

// Connect tests the connection to the API.
func (m *HTTPBackend) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"/blocks/tip/height", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrNotConnected, resp.StatusCode)
	}

	m.connected = true
	return nil
}

// Close closes the connection.
func (m *HTTPBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns true if connected.
func (m *HTTPBackend) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetAddressInfo returns address balance and tx count.
func (m *HTTPBackend) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	var result struct {
		Address    string `json:"address"`
		ChainStats struct {
			FundedTxoCount int64  `json:"funded_txo_count"`
			FundedTxoSum   uint64 `json:"funded_txo_sum"`
			SpentTxoCount  int64  `json:"spent_txo_count"`
			SpentTxoSum    uint64 `json:"spent_txo_sum"`
			TxCount        int64  `json:"tx_count"`
		} `json:"chain_stats"`
		MempoolStats struct {
			FundedTxoCount int64  `json:"funded_txo_count"`
			FundedTxoSum   uint64 `json:"funded_txo_sum"`
			SpentTxoCount  int64  `json:"spent_txo_count"`
			SpentTxoSum    uint64 `json:"spent_txo_sum"`
			TxCount        int64  `json:"tx_count"`
		} `json:"mempool_stats"`
	}

	if err := m.get(ctx, "/address/"+address, &result); err != nil {
		return nil, err
	}

	balance := result.ChainStats.FundedTxoSum - result.ChainStats.SpentTxoSum
	mempoolDelta := int64(result.MempoolStats.FundedTxoSum) - int64(result.MempoolStats.SpentTxoSum)

	return &AddressInfo{
		Address:        result.Address,
		TxCount:        result.ChainStats.TxCount + result.MempoolStats.TxCount,
		FundedTxCount:  result.ChainStats.FundedTxoCount,
		SpentTxCount:   result.ChainStats.SpentTxoCount,
		FundedSum:      result.ChainStats.FundedTxoSum,
		SpentSum:       result.ChainStats.SpentTxoSum,
		Balance:        balance,
		MempoolBalance: mempoolDelta,
	}, nil
}

// GetAddressUTXOs returns unspent outputs for an address.
func (m *HTTPBackend) GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var result []struct {
		TxID   string `json:"txid"`
		Vout   uint32 `json:"vout"`
		Status struct {
			Confirmed   bool  `json:"confirmed"`
			BlockHeight int64 `json:"block_height"`
		} `json:"status"`
		Value uint64 `json:"value"`
	}

	if err := m.get(ctx, "/address/"+address+"/utxo", &result); err != nil {
		return nil, err
	}

	currentHeight, err := m.GetBlockHeight(ctx)
	if err != nil {
		currentHeight = 0
	}

	utxos := make([]UTXO, len(result))
	for i, u := range result {
		var confirmations int64
		if u.Status.Confirmed && u.Status.BlockHeight > 0 {
			if currentHeight > 0 {
				confirmations = currentHeight - u.Status.BlockHeight + 1
			} else {
				confirmations = 1
			}
		}
		utxos[i] = UTXO{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Amount:        u.Value,
			Confirmations: confirmations,
			BlockHeight:   u.Status.BlockHeight,
		}
	}

	return utxos, nil
}

// GetAddressTxs returns transactions for an address.
func (m *HTTPBackend) GetAddressTxs(ctx context.Context, address string, lastSeenTxID string) ([]Transaction, error) {
	endpoint := "/address/" + address + "/txs"
	if lastSeenTxID != "" {
		endpoint += "/chain/" + lastSeenTxID
	}

	var result []esploraTx
	if err := m.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	return m.convertTxs(result), nil
}

// GetTransaction returns a transaction by ID.
func (m *HTTPBackend) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	var result esploraTx
	if err := m.get(ctx, "/tx/"+txID, &result); err != nil {
		return nil, err
	}

	txs := m.convertTxs([]esploraTx{result})
	if len(txs) == 0 {
		return nil, ErrTxNotFound
	}

	tx := &txs[0]

	if tx.Confirmed && tx.BlockHeight > 0 {
		currentHeight, err := m.GetBlockHeight(ctx)
		if err == nil && currentHeight >= tx.BlockHeight {
			tx.Confirmations = currentHeight - tx.BlockHeight + 1
		}
	}

	return tx, nil
}

// GetRawTransaction returns raw transaction hex.
func (m *HTTPBackend) GetRawTransaction(ctx context.Context, txID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"/tx/"+txID+"/hex", nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// GetInput reports whether (txID, vout) has been spent and, if so,
// fetches the spending transaction's input (witness included) — this
// is what internal/watcher's UTXO-spend watcher uses to recover an
// HTLC secret.
func (m *HTTPBackend) GetInput(ctx context.Context, txID string, vout uint32) (*TxInput, error) {
	var outspend struct {
		Spent bool   `json:"spent"`
		TxID  string `json:"txid"`
		Vin   int    `json:"vin"`
	}
	if err := m.get(ctx, fmt.Sprintf("/tx/%s/outspend/%d", txID, vout), &outspend); err != nil {
		return nil, err
	}
	if !outspend.Spent {
		return nil, nil
	}

	spender, err := m.GetTransaction(ctx, outspend.TxID)
	if err != nil {
		return nil, err
	}
	if outspend.Vin < 0 || outspend.Vin >= len(spender.Inputs) {
		return nil, fmt.Errorf("backend: outspend vin %d out of range for tx %s", outspend.Vin, outspend.TxID)
	}
	return &spender.Inputs[outspend.Vin], nil
}

// BroadcastTransaction broadcasts a raw transaction.
func (m *HTTPBackend) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrBroadcastFailed, string(body))
	}

	return strings.TrimSpace(string(body)), nil
}

// GetBlockHeight returns the current block height.
func (m *HTTPBackend) GetBlockHeight(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+"/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var height int64
	if err := json.Unmarshal(body, &height); err != nil {
		return 0, err
	}

	return height, nil
}

// GetBlockHeader returns block header info.
func (m *HTTPBackend) GetBlockHeader(ctx context.Context, hashOrHeight string) (*BlockHeader, error) {
	var result struct {
		ID           string  `json:"id"`
		Height       int64   `json:"height"`
		Version      int32   `json:"version"`
		Timestamp    int64   `json:"timestamp"`
		Bits         uint32  `json:"bits"`
		Nonce        uint32  `json:"nonce"`
		Difficulty   float64 `json:"difficulty"`
		MerkleRoot   string  `json:"merkle_root"`
		PreviousHash string  `json:"previousblockhash"`
		TxCount      int64   `json:"tx_count"`
	}

	if err := m.get(ctx, "/block/"+hashOrHeight, &result); err != nil {
		return nil, err
	}

	return &BlockHeader{
		Hash:         result.ID,
		Height:       result.Height,
		Version:      result.Version,
		PreviousHash: result.PreviousHash,
		MerkleRoot:   result.MerkleRoot,
		Timestamp:    result.Timestamp,
		Bits:         result.Bits,
		Nonce:        result.Nonce,
		Difficulty:   result.Difficulty,
		TxCount:      result.TxCount,
	}, nil
}

// GetFeeEstimates returns fee estimates for different confirmation targets.
func (m *HTTPBackend) GetFeeEstimates(ctx context.Context) (*FeeEstimate, error) {
	var result map[string]float64
	if err := m.get(ctx, "/v1/fees/recommended", &result); err != nil {
		return nil, err
	}

	return &FeeEstimate{
		FastestFee:  uint64(result["fastestFee"]),
		HalfHourFee: uint64(result["halfHourFee"]),
		HourFee:     uint64(result["hourFee"]),
		EconomyFee:  uint64(result["economyFee"]),
		MinimumFee:  uint64(result["minimumFee"]),
	}, nil
}

// get performs a GET request and decodes JSON response.
func (m *HTTPBackend) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", m.baseURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrAddressNotFound
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// esploraTx is the Esplora/mempool.space transaction format.
type esploraTx struct {
	TxID     string `json:"txid"`
	Version  int32  `json:"version"`
	LockTime uint32 `json:"locktime"`
	Size     int64  `json:"size"`
	Weight   int64  `json:"weight"`
	Fee      uint64 `json:"fee"`
	Status   struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight int64  `json:"block_height"`
		BlockHash   string `json:"block_hash"`
		BlockTime   int64  `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		TxID         string   `json:"txid"`
		Vout         uint32   `json:"vout"`
		ScriptSig    string   `json:"scriptsig"`
		ScriptSigAsm string   `json:"scriptsig_asm"`
		Witness      []string `json:"witness"`
		Sequence     uint32   `json:"sequence"`
		Prevout      *struct {
			ScriptPubKey     string `json:"scriptpubkey"`
			ScriptPubKeyAsm  string `json:"scriptpubkey_asm"`
			ScriptPubKeyType string `json:"scriptpubkey_type"`
			ScriptPubKeyAddr string `json:"scriptpubkey_address"`
			Value            uint64 `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKey     string `json:"scriptpubkey"`
		ScriptPubKeyAsm  string `json:"scriptpubkey_asm"`
		ScriptPubKeyType string `json:"scriptpubkey_type"`
		ScriptPubKeyAddr string `json:"scriptpubkey_address"`
		Value            uint64 `json:"value"`
	} `json:"vout"`
}

// convertTxs converts the Esplora wire format to our Transaction format.
func (m *HTTPBackend) convertTxs(eTxs []esploraTx) []Transaction {
	txs := make([]Transaction, len(eTxs))
	for i, et := range eTxs {
		tx := Transaction{
			TxID:        et.TxID,
			Version:     et.Version,
			Size:        et.Size,
			Weight:      et.Weight,
			VSize:       (et.Weight + 3) / 4,
			LockTime:    et.LockTime,
			Fee:         et.Fee,
			Confirmed:   et.Status.Confirmed,
			BlockHash:   et.Status.BlockHash,
			BlockHeight: et.Status.BlockHeight,
			BlockTime:   et.Status.BlockTime,
			Inputs:      make([]TxInput, len(et.Vin)),
			Outputs:     make([]TxOutput, len(et.Vout)),
		}

		for j, vin := range et.Vin {
			input := TxInput{
				TxID:         vin.TxID,
				Vout:         vin.Vout,
				ScriptSig:    vin.ScriptSig,
				ScriptSigAsm: vin.ScriptSigAsm,
				Witness:      vin.Witness,
				Sequence:     vin.Sequence,
			}
			if vin.Prevout != nil {
				input.PrevOut = &TxOutput{
					ScriptPubKey:     vin.Prevout.ScriptPubKey,
					ScriptPubKeyAsm:  vin.Prevout.ScriptPubKeyAsm,
					ScriptPubKeyType: vin.Prevout.ScriptPubKeyType,
					ScriptPubKeyAddr: vin.Prevout.ScriptPubKeyAddr,
					Value:            vin.Prevout.Value,
				}
			}
			tx.Inputs[j] = input
		}

		for j, vout := range et.Vout {
			tx.Outputs[j] = TxOutput{
				ScriptPubKey:     vout.ScriptPubKey,
				ScriptPubKeyAsm:  vout.ScriptPubKeyAsm,
				ScriptPubKeyType: vout.ScriptPubKeyType,
				ScriptPubKeyAddr: vout.ScriptPubKeyAddr,
				Value:            vout.Value,
			}
		}

		txs[i] = tx
	}
	return txs
}

// Ensure HTTPBackend implements Backend
var _ Backend = (*HTTPBackend)(nil)
