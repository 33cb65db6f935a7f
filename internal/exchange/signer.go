// Package exchange implements the venue adapter: the REST client used for
// order management, the EIP-712 signer that authorizes requests, and the
// WebSocket event stream that reports order lifecycle transitions and fills.
//
// The REST client (Client) covers:
//   - PlaceOrder:   POST /v1/order         — submit one signed LIMIT GTD order
//   - CancelOrders: POST /v1/order/cancel  — cancel a batch of ids for a subaccount
//   - Positions:    GET  /v1/position      — open positions for a subaccount
//   - Products:     GET  /v1/product       — catalog: tick size, qty bounds, product id
//   - ServerTime:   GET  /v1/time          — health / clock check
//
// Requests carry the configured timeout and are retried at the transport
// level on 5xx; business errors surface to the caller unretried.
package exchange

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/aaronyhsoh33/market-maker-bot/pkg/types"
)

// wireScale is the fixed-point scale the venue uses for signed amounts:
// prices and quantities are integers scaled by 1e9.
var wireScale = decimal.New(1, 9)

// signingDomain identifies the venue's EIP-712 domain.
var signingDomain = apitypes.TypedDataDomain{
	Name:    "EtherealExchange",
	Version: "1",
	ChainId: (*ethmath.HexOrDecimal256)(big.NewInt(1)),
}

// Signer produces EIP-712 signatures over order and cancel payloads using
// the subaccount's trading key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a signer from a hex-encoded private key (0x prefix
// optional).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the signer's address; the venue verifies signatures
// against the address registered for the subaccount.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder signs a placement request for the given subaccount and returns
// the signature as a 0x-prefixed hex string.
func (s *Signer) SignOrder(req types.OrderRequest, subaccount string) (string, error) {
	qty := scaleAmount(req.Quantity)
	price := scaleAmount(req.Price)

	sig, err := s.signTypedData(
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"TradeOrder": {
				{Name: "sender", Type: "address"},
				{Name: "subaccount", Type: "string"},
				{Name: "productId", Type: "string"},
				{Name: "side", Type: "uint8"},
				{Name: "quantity", Type: "uint256"},
				{Name: "price", Type: "uint256"},
				{Name: "expiresAt", Type: "uint256"},
				{Name: "nonce", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"sender":     s.address.Hex(),
			"subaccount": subaccount,
			"productId":  req.ProductID,
			"side":       fmt.Sprintf("%d", int(req.Side)),
			"quantity":   qty.String(),
			"price":      price.String(),
			"expiresAt":  fmt.Sprintf("%d", req.ExpiresAtSec),
			"nonce":      req.ClientOrderID,
		},
		"TradeOrder",
	)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// SignCancel signs a cancel request over its order-id list and subaccount.
func (s *Signer) SignCancel(req types.CancelRequest) (string, error) {
	ids := ""
	for i, id := range req.OrderIDs {
		if i > 0 {
			ids += ","
		}
		ids += id
	}

	sig, err := s.signTypedData(
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"CancelOrder": {
				{Name: "sender", Type: "address"},
				{Name: "subaccount", Type: "string"},
				{Name: "orderIds", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"sender":     s.address.Hex(),
			"subaccount": req.Subaccount,
			"orderIds":   ids,
		},
		"CancelOrder",
	)
	if err != nil {
		return "", fmt.Errorf("sign cancel: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// signTypedData signs EIP-712 typed data and adjusts V to 27/28.
func (s *Signer) signTypedData(typesDef apitypes.Types, message apitypes.TypedDataMessage, primaryType string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      signingDomain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// scaleAmount converts a float price/quantity to the venue's 1e9 fixed-point
// integer representation.
func scaleAmount(v float64) *big.Int {
	return decimal.NewFromFloat(v).Mul(wireScale).Round(0).BigInt()
}
