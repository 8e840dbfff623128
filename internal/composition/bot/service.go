// Package bot wires the daemon together: configuration, wallet, ledger
// gateway, transport node, and the conversation router.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"chainchat/go-backend/internal/app"
	"chainchat/go-backend/internal/config"
	"chainchat/go-backend/internal/identity"
	"chainchat/go-backend/internal/ledger"
	"chainchat/go-backend/internal/metrics"
	"chainchat/go-backend/internal/platform/ratelimiter"
	"chainchat/go-backend/internal/session"
	"chainchat/go-backend/internal/waku"
)

type Service struct {
	cfg     config.Config
	logger  *slog.Logger
	wallet  *identity.Wallet
	node    *waku.Node
	gateway *ledger.Gateway
	router  *app.Router
	metrics *metrics.Metrics
}

// Build validates the configuration and constructs every component. The
// ledger endpoint is dialed here so a bad RPC URL or contract address
// fails startup instead of the first command.
func Build(ctx context.Context, configPath string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := config.LoadFromPath(configPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wallet, err := newWallet(cfg.Identity, logger)
	if err != nil {
		return nil, fmt.Errorf("derive wallet: %w", err)
	}

	var chainID *big.Int
	if cfg.Ledger.ChainID != 0 {
		chainID = big.NewInt(cfg.Ledger.ChainID)
	}
	gateway, err := ledger.Dial(ctx,
		cfg.Ledger.RPCURL,
		common.HexToAddress(cfg.Ledger.ContractAddress),
		wallet.PrivateKey(),
		chainID,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}

	node := waku.NewNode(cfg.Network)
	node.SetIdentity(wallet.TransportID())

	m := metrics.New()
	sessions := session.NewStore()
	poller := app.NewPoller(gateway, sessions, cfg.Poll.Interval, cfg.Poll.MaxAttempts, logger, m)
	dispatcher := app.NewDispatcher(gateway, sessions, poller, logger, m)
	limiter := ratelimiter.New(cfg.RateLimit.PerSenderRPS, cfg.RateLimit.PerSenderBurst, 0)
	router := app.NewRouter(node, dispatcher, limiter, logger, m)

	return &Service{
		cfg:     cfg,
		logger:  logger,
		wallet:  wallet,
		node:    node,
		gateway: gateway,
		router:  router,
		metrics: m,
	}, nil
}

// Run starts the transport and serves conversations until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.node.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer func() {
		_ = s.node.Stop(context.Background())
		s.gateway.Close()
	}()

	if addr := s.cfg.Metrics.ListenAddr; addr != "" {
		go func() {
			if err := s.metrics.Serve(ctx, addr, s.logger); err != nil {
				s.logger.Warn("metrics endpoint failed", "error", err)
			}
		}()
	}

	s.logger.Info("bot ready",
		"transport_id", s.wallet.TransportID(),
		"ledger_address", s.wallet.LedgerAddress(),
		"transport", s.cfg.Network.Transport)

	return s.router.Run(ctx)
}

// newWallet prefers an explicit private key, then the mnemonic, and
// finally a throwaway key so mock-transport runs work out of the box.
func newWallet(cfg config.IdentityConfig, logger *slog.Logger) (*identity.Wallet, error) {
	switch {
	case cfg.PrivateKeyHex != "":
		return identity.FromHex(cfg.PrivateKeyHex)
	case cfg.Mnemonic != "":
		return identity.FromMnemonic(cfg.Mnemonic)
	default:
		logger.Warn("no wallet secret configured, generating an ephemeral key")
		return identity.NewRandom()
	}
}
