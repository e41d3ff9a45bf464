package testutils

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var ErrNoResponse = errors.New("no canned response")

// ContractCaller is a bind.ContractCaller that answers eth_call with canned,
// ABI-encoded outputs keyed by contract address and method selector.
type ContractCaller struct {
	mu        sync.Mutex
	responses map[common.Address]map[[4]byte][]byte
	calls     int
	err       error
}

func NewContractCaller() *ContractCaller {
	return &ContractCaller{responses: make(map[common.Address]map[[4]byte][]byte)}
}

// Respond registers the outputs method returns when called on address.
func (c *ContractCaller) Respond(t *testing.T, address common.Address, contractABI abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := contractABI.Methods[method]
	require.True(t, ok, "method %s not in ABI", method)
	data, err := m.Outputs.Pack(outputs...)
	require.NoError(t, err)

	var sel [4]byte
	copy(sel[:], m.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responses[address] == nil {
		c.responses[address] = make(map[[4]byte][]byte)
	}
	c.responses[address][sel] = data
}

// Fail makes every following call return err. A nil err clears it.
func (c *ContractCaller) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Calls returns how many eth_calls were made.
func (c *ContractCaller) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *ContractCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.responses[contract]; ok {
		return []byte{0x60}, nil
	}
	return nil, nil
}

func (c *ContractCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if call.To == nil || len(call.Data) < 4 {
		return nil, ErrNoResponse
	}

	var sel [4]byte
	copy(sel[:], call.Data[:4])
	data, ok := c.responses[*call.To][sel]
	if !ok {
		return nil, ErrNoResponse
	}
	return data, nil
}
