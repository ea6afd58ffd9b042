// Package nodeclient is the gRPC client wrapper around the node's
// synchronization RPC surface. The wire codec is a small JSON encoding.Codec
// registered under the "json" content-subtype, since the node's actual
// protobuf schema is outside the scope of the processing tier - only the
// subset of fields this package reads are modeled in types.go.
package nodeclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
)

// hashSize is the byte length of a block hash.
const hashSize = 32

// ParseHash decodes a lowercase hex-encoded block hash into its raw 32 bytes.
// Malformed hashes are surfaced as errors rather than silently truncated or
// passed through, matching the node client's "parse errors are failures, not
// silently dropped" contract.
func ParseHash(s string) ([hashSize]byte, error) {
	var out [hashSize]byte
	if len(s) != hex.EncodedLen(hashSize) {
		return out, fmt.Errorf("%w: hash %q is not %d hex characters", apperr.ErrConsistencyMissing, s, hex.EncodedLen(hashSize))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: hash %q: %v", apperr.ErrConsistencyMissing, s, err)
	}
	copy(out[:], decoded)
	return out, nil
}

// Client wraps a single gRPC connection to a node's synchronization
// endpoint.
type Client struct {
	conn *grpc.ClientConn
}

// defaultPort is appended to addresses given without one, matching the
// node's conventional RPC port.
const defaultPort = "16110"

// normalizeAddress ensures addr carries a host:port pair, appending
// defaultPort when the caller only gave a bare host.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return addr
	}
	if strings.Contains(addr, "://") {
		parts := strings.SplitN(addr, "://", 2)
		addr = parts[1]
	}
	if !strings.Contains(addr, ":") {
		return addr + ":" + defaultPort
	}
	return addr
}

// Dial connects to the node's RPC server at addr. The connection carries no
// transport security: node and processing tier are expected to run inside a
// trusted network boundary.
func Dial(addr string) (*Client, error) {
	target := normalizeAddress(addr)
	if target == "" {
		return nil, fmt.Errorf("%w: empty node address", apperr.ErrConfigInvalid)
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperr.ErrNodeUnavailable, target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrNodeUnavailable, method, err)
	}
	return nil
}
