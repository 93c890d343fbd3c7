package client

import (
	"context"
	"math/big"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"

	log "github.com/sirupsen/logrus"
)

type EthereumClient interface {
	ValidateNetwork()
	GetBlockNumber() (uint64, error)
	GetChainID() (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	GetCaller() bind.ContractCaller
	GetBackend() Backend
}

type ethereumClient struct {
	client *ethclient.Client
}

var Client EthereumClient = &ethereumClient{}

func rpcTimeout() time.Duration {
	return time.Duration(app.Config.Ethereum.RPCTimeoutMillis) * time.Millisecond
}

func (c *ethereumClient) GetCaller() bind.ContractCaller {
	return c.client
}

func (c *ethereumClient) GetBackend() Backend {
	return c.client
}

func (c *ethereumClient) GetBlockNumber() (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout())
	defer cancel()

	return c.client.BlockNumber(ctx)
}

func (c *ethereumClient) GetChainID() (*big.Int, error) {
	return c.ChainID(context.Background())
}

// ChainID reads the chain id from the node, bounded by the rpc timeout.
// It satisfies settlement.ChainIDSource.
func (c *ethereumClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout())
	defer cancel()

	return c.client.ChainID(ctx)
}

func (c *ethereumClient) ValidateNetwork() {
	log.Debugln("[ETH]", "Validating network")
	log.Debugln("[ETH]", "uri", app.Config.Ethereum.RPCURL)
	client, err := ethclient.Dial(app.Config.Ethereum.RPCURL)
	if err != nil {
		log.Fatalln("[ETH]", "Failed to connect to Ethereum node:", err)
	}
	c.client = client

	chainID, err := c.GetChainID()
	if err != nil {
		log.Fatalln("[ETH]", "Failed to get chain ID:", err)
	}
	blockNumber, err := c.GetBlockNumber()
	if err != nil {
		log.Fatalln("[ETH]", "Failed to get block number:", err)
	}

	log.Debugln("[ETH]", "chainID", chainID.String())

	if chainID.String() != app.Config.Ethereum.ChainID {
		log.Fatalln("[ETH]", "Chain ID Mismatch", "expected", app.Config.Ethereum.ChainID, "got", chainID.String())
	}

	log.Debugln("[ETH]", "blockNumber", blockNumber)

	log.Infoln("[ETH]", "Validated network")
}
