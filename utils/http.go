// utils/http.go
package utils

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// HTTPClient bounds every JSON-RPC round trip; eth_getLogs over a wide range can be slow.
var HTTPClient = &http.Client{
	Timeout: 60 * time.Second,
}

// DialRPC connects to an Ethereum node. HTTP endpoints use HTTPClient; ws and ipc are dialed as is.
func DialRPC(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(HTTPClient))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(c), nil
}
