// Package clients contains thin wrappers over external chain endpoints.
package clients

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridset/internal/domain"
	"github.com/vadiminshakov/gridset/pkg/retrier"
	"go.uber.org/zap"
)

// Read surface of the EnergyMarket contract.
const energyMarketABI = `[
  {"inputs":[{"name":"timeSlot","type":"uint256"}],"name":"getAuction","outputs":[{"components":[{"name":"timeSlot","type":"uint256"},{"name":"startTime","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"clearingPrice","type":"uint256"},{"name":"totalBidQuantity","type":"uint256"},{"name":"totalAskQuantity","type":"uint256"},{"name":"isCleared","type":"bool"}],"type":"tuple"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"timeSlot","type":"uint256"}],"name":"getBestBid","outputs":[{"name":"price","type":"uint256"},{"name":"quantity","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"timeSlot","type":"uint256"}],"name":"getBestAsk","outputs":[{"name":"price","type":"uint256"},{"name":"quantity","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"timeSlot","type":"uint256"}],"name":"getOrderBook","outputs":[{"components":[{"name":"orderId","type":"uint256"},{"name":"trader","type":"address"},{"name":"isBid","type":"bool"},{"name":"price","type":"uint256"},{"name":"quantity","type":"uint256"},{"name":"filledQuantity","type":"uint256"},{"name":"timeSlot","type":"uint256"},{"name":"isActive","type":"bool"}],"type":"tuple[]"},{"components":[{"name":"orderId","type":"uint256"},{"name":"trader","type":"address"},{"name":"isBid","type":"bool"},{"name":"price","type":"uint256"},{"name":"quantity","type":"uint256"},{"name":"filledQuantity","type":"uint256"},{"name":"timeSlot","type":"uint256"},{"name":"isActive","type":"bool"}],"type":"tuple[]"}],"stateMutability":"view","type":"function"}
]`

// auctionResult mirrors the contract's auction tuple.
type auctionResult struct {
	TimeSlot         *big.Int
	StartTime        *big.Int
	EndTime          *big.Int
	ClearingPrice    *big.Int
	TotalBidQuantity *big.Int
	TotalAskQuantity *big.Int
	IsCleared        bool
}

// orderResult mirrors the contract's order tuple.
type orderResult struct {
	OrderId        *big.Int
	Trader         common.Address
	IsBid          bool
	Price          *big.Int
	Quantity       *big.Int
	FilledQuantity *big.Int
	TimeSlot       *big.Int
	IsActive       bool
}

// EnergyMarketClient reads the EnergyMarket contract over an Ethereum RPC
// endpoint. All uint256 amounts are rescaled from the token's fixed-point
// representation into plain display decimals at this boundary, so consumers
// never see raw chain integers.
type EnergyMarketClient struct {
	eth      *ethclient.Client
	abi      abi.ABI
	address  common.Address
	decimals int32
	retrier  *retrier.Retrier
	logger   *zap.Logger
}

// NewEnergyMarketClient dials the RPC endpoint and binds the market contract.
func NewEnergyMarketClient(rpcURL, contractAddress string, tokenDecimals int32, logger *zap.Logger) (*EnergyMarketClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, errors.Errorf("invalid market contract address: %s", contractAddress)
	}

	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial ethereum rpc")
	}

	parsed, err := abi.JSON(strings.NewReader(energyMarketABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse energy market abi")
	}

	return &EnergyMarketClient{
		eth:      eth,
		abi:      parsed,
		address:  common.HexToAddress(contractAddress),
		decimals: tokenDecimals,
		retrier: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(200*time.Millisecond),
		),
		logger: logger,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *EnergyMarketClient) Close() {
	c.eth.Close()
}

// GetAuction returns the slot auction summary.
func (c *EnergyMarketClient) GetAuction(ctx context.Context, slot uint64) (domain.Auction, error) {
	out, err := c.call(ctx, "getAuction", new(big.Int).SetUint64(slot))
	if err != nil {
		return domain.Auction{}, err
	}

	raw := *abi.ConvertType(out[0], new(auctionResult)).(*auctionResult)
	return domain.Auction{
		TimeSlot:         raw.TimeSlot.Uint64(),
		ClearingPrice:    c.scale(raw.ClearingPrice),
		TotalBidQuantity: c.scale(raw.TotalBidQuantity),
		TotalAskQuantity: c.scale(raw.TotalAskQuantity),
		IsCleared:        raw.IsCleared,
	}, nil
}

// GetBestBid returns the highest open bid level.
func (c *EnergyMarketClient) GetBestBid(ctx context.Context, slot uint64) (domain.Quote, error) {
	return c.quote(ctx, "getBestBid", slot)
}

// GetBestAsk returns the lowest open ask level.
func (c *EnergyMarketClient) GetBestAsk(ctx context.Context, slot uint64) (domain.Quote, error) {
	return c.quote(ctx, "getBestAsk", slot)
}

// GetOrderBook returns the full bid and ask depth for the slot. Inactive
// orders are dropped here so the aggregator only ranks live liquidity.
func (c *EnergyMarketClient) GetOrderBook(ctx context.Context, slot uint64) ([]domain.BookRow, []domain.BookRow, error) {
	out, err := c.call(ctx, "getOrderBook", new(big.Int).SetUint64(slot))
	if err != nil {
		return nil, nil, err
	}

	rawBids := *abi.ConvertType(out[0], new([]orderResult)).(*[]orderResult)
	rawAsks := *abi.ConvertType(out[1], new([]orderResult)).(*[]orderResult)
	return c.rows(rawBids), c.rows(rawAsks), nil
}

func (c *EnergyMarketClient) quote(ctx context.Context, method string, slot uint64) (domain.Quote, error) {
	out, err := c.call(ctx, method, new(big.Int).SetUint64(slot))
	if err != nil {
		return domain.Quote{}, err
	}

	price, ok := out[0].(*big.Int)
	if !ok {
		return domain.Quote{}, errors.Errorf("%s: unexpected price type %T", method, out[0])
	}
	quantity, ok := out[1].(*big.Int)
	if !ok {
		return domain.Quote{}, errors.Errorf("%s: unexpected quantity type %T", method, out[1])
	}

	return domain.Quote{Price: c.scale(price), Quantity: c.scale(quantity)}, nil
}

// call packs, executes and unpacks one read-only contract method with retries.
func (c *EnergyMarketClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	callID := uuid.New().String()
	msg := ethereum.CallMsg{To: &c.address, Data: data}

	res, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		payload, callErr := c.eth.CallContract(ctx, msg, nil)
		if callErr != nil {
			c.logger.Debug("contract call failed, retrying",
				zap.String("method", method),
				zap.String("call_id", callID),
				zap.Error(callErr))
		}
		return payload, callErr
	})
	if err != nil {
		return nil, errors.Wrapf(err, "call %s on %s", method, c.address.Hex())
	}

	out, err := c.abi.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}

func (c *EnergyMarketClient) rows(raw []orderResult) []domain.BookRow {
	rows := make([]domain.BookRow, 0, len(raw))
	for _, o := range raw {
		if !o.IsActive {
			continue
		}
		price := c.scale(o.Price)
		quantity := c.scale(o.Quantity)
		rows = append(rows, domain.BookRow{
			Price:          price,
			Quantity:       quantity,
			FilledQuantity: c.scale(o.FilledQuantity),
			Total:          price.Mul(quantity),
		})
	}
	return rows
}

func (c *EnergyMarketClient) scale(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -c.decimals)
}
