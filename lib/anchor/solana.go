// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
)

// Solana anchors payloads as memo-program transactions on a Solana
// cluster, paid for and signed by a single funded keypair. The Submit
// reference is the transaction signature; Resolve reads the memo
// instruction data back out of the confirmed transaction.
type Solana struct {
	endpoint   string
	commitment string
	payer      ed25519.PrivateKey
	httpClient *http.Client
	logger     *slog.Logger
}

// SolanaConfig configures a Solana anchor service.
type SolanaConfig struct {
	// Endpoint is the JSON-RPC URL of the cluster. Required.
	Endpoint string

	// Payer signs and funds every anchor transaction. Required.
	Payer ed25519.PrivateKey

	// Commitment is the confirmation level used for blockhash fetches
	// and transaction lookups. Defaults to "confirmed".
	Commitment string

	// HTTPClient overrides the transport. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger receives request-level events. Required.
	Logger *slog.Logger
}

// NewSolana constructs a Solana anchor service from cfg.
func NewSolana(cfg SolanaConfig) (*Solana, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("anchor: Endpoint is required")
	}
	if len(cfg.Payer) != ed25519.PrivateKeySize {
		return nil, errors.New("anchor: Payer must be a 64-byte Ed25519 private key")
	}
	if cfg.Logger == nil {
		return nil, errors.New("anchor: Logger is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Solana{
		endpoint:   cfg.Endpoint,
		commitment: cfg.Commitment,
		payer:      cfg.Payer,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

var _ Service = (*Solana)(nil)

// PayerAddress returns the base58 address of the funding keypair.
func (s *Solana) PayerAddress() string {
	return base58.Encode(s.payer.Public().(ed25519.PublicKey))
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result field
// into out (which may be nil to discard it).
func (s *Solana) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("calling %s: unexpected status %s", method, response.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s failed: %s (code %d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

func (s *Solana) latestBlockhash(ctx context.Context) ([32]byte, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	err := s.call(ctx, "getLatestBlockhash",
		[]any{map[string]any{"commitment": s.commitment}}, &result)
	if err != nil {
		return [32]byte{}, err
	}

	decoded, err := base58.Decode(result.Value.Blockhash)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, fmt.Errorf("decoding blockhash %q: malformed", result.Value.Blockhash)
	}
	var blockhash [32]byte
	copy(blockhash[:], decoded)
	return blockhash, nil
}

func (s *Solana) Submit(ctx context.Context, payload []byte) (string, error) {
	blockhash, err := s.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	transaction := buildMemoTransaction(s.payer, blockhash, payload)

	var signature string
	err = s.call(ctx, "sendTransaction",
		[]any{
			base64.StdEncoding.EncodeToString(transaction),
			map[string]any{"encoding": "base64"},
		}, &signature)
	if err != nil {
		return "", err
	}

	s.logger.Debug("anchor transaction submitted",
		"signature", signature,
		"payload_bytes", len(payload))
	return signature, nil
}

func (s *Solana) Resolve(ctx context.Context, reference string) (bool, []byte, error) {
	var result *struct {
		Transaction struct {
			Message struct {
				AccountKeys  []string `json:"accountKeys"`
				Instructions []struct {
					ProgramIDIndex int    `json:"programIdIndex"`
					Data           string `json:"data"`
				} `json:"instructions"`
			} `json:"message"`
		} `json:"transaction"`
	}
	err := s.call(ctx, "getTransaction",
		[]any{
			reference,
			map[string]any{
				"encoding":                       "json",
				"commitment":                     s.commitment,
				"maxSupportedTransactionVersion": 0,
			},
		}, &result)
	if err != nil {
		return false, nil, err
	}
	if result == nil {
		return false, nil, nil
	}

	message := result.Transaction.Message
	for _, instruction := range message.Instructions {
		if instruction.ProgramIDIndex < 0 || instruction.ProgramIDIndex >= len(message.AccountKeys) {
			continue
		}
		if message.AccountKeys[instruction.ProgramIDIndex] != MemoProgramID {
			continue
		}
		payload, err := base58.Decode(instruction.Data)
		if err != nil {
			return false, nil, fmt.Errorf("decoding memo data: %w", err)
		}
		return true, payload, nil
	}

	// The transaction exists but carries no memo instruction; it was
	// not written by this service.
	return false, nil, nil
}
