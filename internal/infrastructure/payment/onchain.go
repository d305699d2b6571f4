package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/relaygate/relaygate/internal/application/payment/paymentgateway"
	"github.com/relaygate/relaygate/internal/application/payment/suffixalloc"
	"github.com/relaygate/relaygate/internal/domain/payment"
	vo "github.com/relaygate/relaygate/internal/domain/payment/valueobjects"
	"github.com/relaygate/relaygate/internal/shared/config"
	"github.com/relaygate/relaygate/internal/shared/id"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

const (
	OnchainName = "onchain"

	defaultConfirmations = 12
	defaultTokenDecimals = 6
	cryptoIDLength       = 12

	// Suffixes stay below one hundredth of a token so two reserved amounts
	// never collide across different prices.
	minTokenDecimals = 4
	maxAmountSuffix  = 9999

	defaultReservationTTL = 24 * time.Hour
)

// ERC20 Transfer event signature
var transferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// chainReader is the part of ethclient the gateway needs.
type chainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// TxRefFinder resolves a settlement reference to the payment that already used it.
type TxRefFinder interface {
	GetByTxRef(ctx context.Context, txRef string) (*payment.Payment, error)
}

type onchainNotification struct {
	PaymentID string `json:"payment_id"`
	TxHash    string `json:"tx_hash"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// OnchainGateway accepts ERC-20 token transfers to a fixed wallet. Every
// payment reserves its own raw amount (price plus a small suffix), and a
// transfer settles only the payment whose amount it carries exactly.
type OnchainGateway struct {
	client         chainReader
	txRefs         TxRefFinder
	suffixes       suffixalloc.SuffixAllocator
	tokenContract  common.Address
	wallet         common.Address
	confirmations  uint64
	decimals       int
	maxSuffix      uint
	reservationTTL time.Duration
	logger         logger.Interface
}

var _ paymentgateway.PaymentGateway = (*OnchainGateway)(nil)

// OnchainStores are the persistence dependencies of the on-chain gateway.
type OnchainStores struct {
	TxRefs   TxRefFinder
	Suffixes suffixalloc.SuffixAllocator
}

func NewOnchainGateway(cfg config.OnchainConfig, stores OnchainStores, reservationTTL time.Duration, logger logger.Interface) (*OnchainGateway, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return newOnchainGateway(cfg, client, stores, reservationTTL, logger)
}

func newOnchainGateway(cfg config.OnchainConfig, client chainReader, stores OnchainStores, reservationTTL time.Duration, logger logger.Interface) (*OnchainGateway, error) {
	if stores.Suffixes == nil {
		return nil, fmt.Errorf("onchain gateway requires a suffix allocator")
	}
	if !common.IsHexAddress(cfg.TokenContract) {
		return nil, fmt.Errorf("invalid token contract address %q", cfg.TokenContract)
	}
	if !common.IsHexAddress(cfg.Wallet) {
		return nil, fmt.Errorf("invalid wallet address %q", cfg.Wallet)
	}
	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = defaultConfirmations
	}
	decimals := cfg.TokenDecimals
	if decimals <= 0 {
		decimals = defaultTokenDecimals
	}
	if decimals < minTokenDecimals {
		return nil, fmt.Errorf("token decimals must be at least %d, got %d", minTokenDecimals, decimals)
	}
	if reservationTTL <= 0 {
		reservationTTL = defaultReservationTTL
	}
	return &OnchainGateway{
		client:         client,
		txRefs:         stores.TxRefs,
		suffixes:       stores.Suffixes,
		tokenContract:  common.HexToAddress(cfg.TokenContract),
		wallet:         common.HexToAddress(cfg.Wallet),
		confirmations:  confirmations,
		decimals:       decimals,
		maxSuffix:      suffixRange(decimals),
		reservationTTL: reservationTTL,
		logger:         logger,
	}, nil
}

// suffixRange is min(9999, 10^(decimals-2)-1).
func suffixRange(decimals int) uint {
	if decimals-2 >= 4 {
		return maxAmountSuffix
	}
	limit := uint(1)
	for i := 0; i < decimals-2; i++ {
		limit *= 10
	}
	return limit - 1
}

func (g *OnchainGateway) Name() string {
	return OnchainName
}

// CreatePayment mints a local id, reserves a unique raw amount for it and
// answers with an EIP-681 transfer request for exactly that amount.
func (g *OnchainGateway) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error) {
	paymentID, err := id.GenerateWithPrefix(id.PrefixCryptoPayment, cryptoIDLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	alloc, err := g.suffixes.Allocate(ctx, g.wallet.Hex(), g.rawAmount(req.Amount), g.maxSuffix, paymentID, g.reservationTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	return &paymentgateway.CreatePaymentResponse{
		ProviderPaymentID: paymentID,
		Status:            vo.PaymentStatusPending,
		RedirectOrInvoice: fmt.Sprintf("ethereum:%s/transfer?address=%s&uint256=%s",
			g.tokenContract.Hex(), g.wallet.Hex(), alloc.FullAmountRaw.String()),
	}, nil
}

func (g *OnchainGateway) GetStatus(ctx context.Context, providerPaymentID string) (vo.PaymentStatus, error) {
	if !id.HasPrefix(providerPaymentID, id.PrefixCryptoPayment) {
		return vo.PaymentStatusFailed, nil
	}
	return vo.PaymentStatusPending, nil
}

// VerifyNotification reads the receipt of the named transaction and requires
// a successful, sufficiently confirmed token transfer to the wallet of exactly
// the amount reserved for the named payment, mined after the reservation.
func (g *OnchainGateway) VerifyNotification(ctx context.Context, n *paymentgateway.Notification) (bool, error) {
	note, amount, err := parseOnchainNotification(n.Body)
	if err != nil {
		return false, err
	}
	hash := common.HexToHash(note.TxHash)

	alloc, err := g.suffixes.Get(ctx, note.PaymentID)
	if err != nil {
		return false, err
	}
	if alloc == nil {
		g.logger.Warnw("no amount reservation for payment", "payment_id", note.PaymentID)
		return false, nil
	}
	if g.rawAmount(*amount).Cmp(alloc.BaseAmountRaw) != 0 {
		g.logger.Warnw("notified amount differs from reservation",
			"payment_id", note.PaymentID,
			"notified_raw", g.rawAmount(*amount).String(),
			"reserved_base_raw", alloc.BaseAmountRaw.String(),
		)
		return false, nil
	}

	if g.txRefs != nil {
		used, err := g.txRefs.GetByTxRef(ctx, hash.Hex())
		if err != nil {
			return false, err
		}
		if used != nil && used.ProviderPaymentID() != note.PaymentID {
			g.logger.Warnw("transaction already settled another payment",
				"tx_hash", hash.Hex(),
				"payment_id", note.PaymentID,
				"settled", used.ProviderPaymentID(),
			)
			return false, nil
		}
	}

	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		g.logger.Infow("transaction receipt not found", "tx_hash", hash.Hex())
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful || receipt.BlockNumber == nil {
		return false, nil
	}

	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	mined := receipt.BlockNumber.Uint64()
	if head < mined || head-mined+1 < g.confirmations {
		g.logger.Infow("transaction not yet confirmed",
			"tx_hash", hash.Hex(),
			"block", mined,
			"head", head,
			"required", g.confirmations,
		)
		return false, nil
	}

	header, err := g.client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return false, fmt.Errorf("%w: %v", paymentgateway.ErrProviderUnavailable, err)
	}
	if minedAt := time.Unix(int64(header.Time), 0); minedAt.Before(alloc.AllocatedAt.Truncate(time.Second)) {
		g.logger.Warnw("transaction predates amount reservation",
			"tx_hash", hash.Hex(),
			"payment_id", note.PaymentID,
			"mined_at", minedAt,
			"allocated_at", alloc.AllocatedAt,
		)
		return false, nil
	}

	for _, l := range receipt.Logs {
		if value, ok := g.transferToWallet(l); ok && value.Cmp(alloc.FullAmountRaw) == 0 {
			return true, nil
		}
	}
	g.logger.Warnw("no transfer of the reserved amount in transaction",
		"tx_hash", hash.Hex(),
		"payment_id", note.PaymentID,
		"want_raw", alloc.FullAmountRaw.String(),
	)
	return false, nil
}

func (g *OnchainGateway) NormalizeNotification(n *paymentgateway.Notification) (*paymentgateway.Event, error) {
	note, amount, err := parseOnchainNotification(n.Body)
	if err != nil {
		return nil, err
	}
	return &paymentgateway.Event{
		ProviderPaymentID: note.PaymentID,
		Status:            vo.PaymentStatusSuccess,
		Amount:            amount,
		Metadata: map[string]string{
			paymentgateway.EventMetaTxRef: common.HexToHash(note.TxHash).Hex(),
		},
	}, nil
}

func parseOnchainNotification(body []byte) (*onchainNotification, *vo.Money, error) {
	var note onchainNotification
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", paymentgateway.ErrMalformedNotification, err)
	}
	if !id.HasPrefix(note.PaymentID, id.PrefixCryptoPayment) {
		return nil, nil, fmt.Errorf("%w: invalid payment id", paymentgateway.ErrMalformedNotification)
	}
	raw, err := hexutil.Decode(note.TxHash)
	if err != nil || len(raw) != common.HashLength {
		return nil, nil, fmt.Errorf("%w: invalid tx hash", paymentgateway.ErrMalformedNotification)
	}
	amount, err := vo.ParseMoney(note.Amount, note.Currency)
	if err != nil || !amount.IsPositive() || strings.TrimSpace(note.Currency) == "" {
		return nil, nil, fmt.Errorf("%w: invalid amount", paymentgateway.ErrMalformedNotification)
	}
	return &note, &amount, nil
}

// transferToWallet decodes an ERC-20 Transfer(from, to, value) log of the
// configured token addressed to the wallet.
func (g *OnchainGateway) transferToWallet(l *types.Log) (*big.Int, bool) {
	if l == nil || l.Address != g.tokenContract || len(l.Topics) != 3 || l.Topics[0] != transferEventSig {
		return nil, false
	}
	if common.BytesToAddress(l.Topics[2].Bytes()) != g.wallet {
		return nil, false
	}
	return new(big.Int).SetBytes(l.Data), true
}

// rawAmount converts minor units at the currency's scale into the token's
// smallest unit.
func (g *OnchainGateway) rawAmount(m vo.Money) *big.Int {
	raw := big.NewInt(m.AmountMinor())
	shift := g.decimals - m.Scale()
	if shift >= 0 {
		return raw.Mul(raw, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	}
	return raw.Div(raw, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil))
}
