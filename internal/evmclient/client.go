package evmclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/myceliasignal/slo/internal/x402types"
)

// erc20ABIJSON covers exactly the three calls the stablecoin rail needs.
// There is no abigen-generated binding in this tree; bind.BoundContract is
// go-ethereum's own answer to calling a contract without one.
const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"authorizationState","type":"function","stateMutability":"view",
   "inputs":[{"name":"authorizer","type":"address"},{"name":"nonce","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"transferWithAuthorization","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"from","type":"address"},{"name":"to","type":"address"},
     {"name":"value","type":"uint256"},{"name":"validAfter","type":"uint256"},
     {"name":"validBefore","type":"uint256"},{"name":"nonce","type":"bytes32"},
     {"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],
   "outputs":[]}
]`

// Client is a thin wrapper over ethclient.Client scoped to the single
// stablecoin-settlement chain this oracle is configured for.
type Client struct {
	eth      *ethclient.Client
	erc20ABI abi.ABI
	relayer  *ecdsa.PrivateKey
}

// Dial connects to rpcURL. relayerKeyHex, if non-empty, is the private key
// used to broadcast transferWithAuthorization calls during settlement; a
// verify-only deployment can leave it empty.
func Dial(rpcURL, relayerKeyHex string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evmclient: dial %s: %w", rpcURL, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evmclient: parse erc20 abi: %w", err)
	}

	var relayer *ecdsa.PrivateKey
	if relayerKeyHex != "" {
		relayer, err = crypto.HexToECDSA(strings.TrimPrefix(relayerKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evmclient: invalid relayer key: %w", err)
		}
	}

	return &Client{eth: eth, erc20ABI: parsedABI, relayer: relayer}, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) contract(token string) *bind.BoundContract {
	addr := common.HexToAddress(token)
	return bind.NewBoundContract(addr, c.erc20ABI, c.eth, c.eth, c.eth)
}

func (c *Client) BalanceOf(ctx context.Context, token, owner string) (*big.Int, error) {
	var out []interface{}
	err := c.contract(token).Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("evmclient: balanceOf: %w", err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evmclient: balanceOf: unexpected return type %T", out[0])
	}
	return bal, nil
}

func (c *Client) AuthorizationState(ctx context.Context, token, authorizer string, nonce [32]byte) (bool, error) {
	var out []interface{}
	err := c.contract(token).Call(&bind.CallOpts{Context: ctx}, &out, "authorizationState", common.HexToAddress(authorizer), nonce)
	if err != nil {
		return false, fmt.Errorf("evmclient: authorizationState: %w", err)
	}
	used, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("evmclient: authorizationState: unexpected return type %T", out[0])
	}
	return used, nil
}

// SimulateTransferWithAuthorization performs an eth_call impersonating the
// payer, to catch a reverting authorization before it's ever broadcast.
func (c *Client) SimulateTransferWithAuthorization(ctx context.Context, token string, auth x402types.EIP3009Authorization, v uint8, r, s [32]byte) (bool, error) {
	calldata, err := c.erc20ABI.Pack("transferWithAuthorization",
		common.HexToAddress(auth.From), common.HexToAddress(auth.To),
		mustBig(auth.Value), mustBig(auth.ValidAfter), mustBig(auth.ValidBefore),
		mustBytes32(auth.Nonce), v, r, s,
	)
	if err != nil {
		return false, fmt.Errorf("evmclient: pack calldata: %w", err)
	}

	contractAddr := common.HexToAddress(token)
	from := common.HexToAddress(auth.From)
	_, err = c.eth.CallContract(ctx, ethereum.CallMsg{From: from, To: &contractAddr, Data: calldata}, nil)
	if err != nil {
		return false, nil // revert: simulation failed, not a transport error
	}
	return true, nil
}

// SubmitTransferWithAuthorization broadcasts the transferWithAuthorization
// call, relaying the payer's signed authorization at the oracle's expense.
func (c *Client) SubmitTransferWithAuthorization(ctx context.Context, token string, auth x402types.EIP3009Authorization, v uint8, r, s [32]byte) (txHash string, err error) {
	if c.relayer == nil {
		return "", fmt.Errorf("evmclient: no relayer key configured")
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("evmclient: chain id: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.relayer, chainID)
	if err != nil {
		return "", fmt.Errorf("evmclient: transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract(token).Transact(opts, "transferWithAuthorization",
		common.HexToAddress(auth.From), common.HexToAddress(auth.To),
		mustBig(auth.Value), mustBig(auth.ValidAfter), mustBig(auth.ValidBefore),
		mustBytes32(auth.Nonce), v, r, s,
	)
	if err != nil {
		return "", fmt.Errorf("evmclient: submit transfer: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func mustBig(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func mustBytes32(hexStr string) [32]byte {
	b, _ := hexToBytes32(hexStr)
	return b
}
