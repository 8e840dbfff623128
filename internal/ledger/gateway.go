// Package ledger talks to the on-chain chat contract. The contract owns
// the authoritative chat log: startChat opens a session and emits
// ChatCreated with the assigned chat id, addMessage appends a user turn,
// and getMessageHistory returns the full ordered log including turns the
// off-chain responder has appended.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"chainchat/go-backend/pkg/models"
)

const chatABIJSON = `[
	{"type":"function","name":"startChat","stateMutability":"nonpayable","inputs":[{"name":"message","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"addMessage","stateMutability":"nonpayable","inputs":[{"name":"message","type":"string"},{"name":"chatId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getMessageHistory","stateMutability":"view","inputs":[{"name":"chatId","type":"uint256"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"role","type":"string"},{"name":"content","type":"string"}]}]},
	{"type":"event","name":"ChatCreated","inputs":[{"name":"owner","type":"address","indexed":true},{"name":"chatId","type":"uint256","indexed":true}],"anonymous":false}
]`

var (
	ErrNoChatCreated = errors.New("chat creation event missing from receipt")
	ErrBadSessionID  = errors.New("session id is not a valid chat id")
	ErrTxReverted    = errors.New("transaction reverted")
)

// ChatTurn mirrors the contract's history tuple layout.
type ChatTurn struct {
	Role    string
	Content string
}

type Gateway struct {
	eth      *ethclient.Client
	bound    *bind.BoundContract
	chatABI  abi.ABI
	contract common.Address
	auth     *bind.TransactOpts
	logger   *slog.Logger

	// Serializes transaction submission so the pending-nonce lookup
	// inside bind cannot race between concurrent sessions.
	txMu sync.Mutex
}

// Dial connects to the ledger RPC endpoint and binds the chat contract.
// chainID may be nil, in which case it is fetched from the endpoint.
func Dial(ctx context.Context, rpcURL string, contract common.Address, key *ecdsa.PrivateKey, chainID *big.Int, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsed, err := abi.JSON(strings.NewReader(chatABIJSON))
	if err != nil {
		return nil, err
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	if chainID == nil {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("resolve chain id: %w", err)
		}
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		eth.Close()
		return nil, err
	}
	return &Gateway{
		eth:      eth,
		bound:    bind.NewBoundContract(contract, parsed, eth, eth, eth),
		chatABI:  parsed,
		contract: contract,
		auth:     auth,
		logger:   logger,
	}, nil
}

func (g *Gateway) Close() {
	if g.eth != nil {
		g.eth.Close()
	}
}

// StartChat submits a session-creating transaction and extracts the
// assigned chat id from the mined receipt's ChatCreated event. A receipt
// without that event yields ErrNoChatCreated, a recoverable domain error.
func (g *Gateway) StartChat(ctx context.Context, message string) (string, error) {
	receipt, err := g.transact(ctx, "startChat", message)
	if err != nil {
		return "", err
	}
	chatID, err := ChatIDFromReceipt(g.chatABI, g.contract, receipt)
	if err != nil {
		return "", err
	}
	g.logger.Info("chat session created", "chat_id", chatID.String(), "tx", receipt.TxHash.Hex())
	return chatID.String(), nil
}

// AddMessage appends a user message to an existing session.
func (g *Gateway) AddMessage(ctx context.Context, sessionID, message string) error {
	chatID, ok := parseChatID(sessionID)
	if !ok {
		return ErrBadSessionID
	}
	receipt, err := g.transact(ctx, "addMessage", message, chatID)
	if err != nil {
		return err
	}
	g.logger.Debug("message appended on chain", "chat_id", sessionID, "tx", receipt.TxHash.Hex())
	return nil
}

// ReadLog fetches the full ordered turn log for a session.
func (g *Gateway) ReadLog(ctx context.Context, sessionID string) ([]models.Turn, error) {
	chatID, ok := parseChatID(sessionID)
	if !ok {
		return nil, ErrBadSessionID
	}
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := g.bound.Call(opts, &out, "getMessageHistory", chatID); err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}
	history := *abi.ConvertType(out[0], new([]ChatTurn)).(*[]ChatTurn)
	return TurnsFromHistory(history), nil
}

func (g *Gateway) transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	g.txMu.Lock()
	opts := *g.auth
	opts.Context = ctx
	tx, err := g.bound.Transact(&opts, method, args...)
	g.txMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, g.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("await %s receipt: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s tx %s", ErrTxReverted, method, receipt.TxHash.Hex())
	}
	return receipt, nil
}

// ChatIDFromReceipt scans a mined receipt for the contract's ChatCreated
// event and returns the indexed chat id.
func ChatIDFromReceipt(chatABI abi.ABI, contract common.Address, receipt *types.Receipt) (*big.Int, error) {
	eventID := chatABI.Events["ChatCreated"].ID
	for _, entry := range receipt.Logs {
		if entry == nil || entry.Address != contract {
			continue
		}
		if len(entry.Topics) < 3 || entry.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[2].Bytes()), nil
	}
	return nil, ErrNoChatCreated
}

// TurnsFromHistory maps contract tuples onto domain turns, normalizing
// whatever role strings the responder wrote.
func TurnsFromHistory(history []ChatTurn) []models.Turn {
	turns := make([]models.Turn, 0, len(history))
	for _, h := range history {
		turns = append(turns, models.Turn{
			Role:    models.NormalizeRole(h.Role),
			Content: h.Content,
		})
	}
	return turns
}

func parseChatID(sessionID string) (*big.Int, bool) {
	id, ok := new(big.Int).SetString(sessionID, 10)
	if !ok || id.Sign() < 0 {
		return nil, false
	}
	return id, true
}
