package nodeclient

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
)

const (
	methodGetInfo                   = "/tondi.rpc.RPC/GetInfo"
	methodGetBlockDAGInfo           = "/tondi.rpc.RPC/GetBlockDagInfo"
	methodGetBlock                  = "/tondi.rpc.RPC/GetBlock"
	methodGetBlocks                 = "/tondi.rpc.RPC/GetBlocks"
	methodGetSink                   = "/tondi.rpc.RPC/GetSink"
	methodGetVirtualChainFromBlock  = "/tondi.rpc.RPC/GetVirtualChainFromBlock"
	methodNotifyBlockAdded          = "/tondi.rpc.RPC/NotifyBlockAdded"
	methodNotifyVirtualChainChanged = "/tondi.rpc.RPC/NotifyVirtualChainChanged"
)

// GetInfo reports the node's version and sync state.
func (c *Client) GetInfo(ctx context.Context) (*GetInfoResponse, error) {
	resp := &GetInfoResponse{}
	if err := c.invoke(ctx, methodGetInfo, &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBlockDAGInfo reports the node's DAG tip set, pruning point, and virtual
// DAA score.
func (c *Client) GetBlockDAGInfo(ctx context.Context) (*GetBlockDAGInfoResponse, error) {
	resp := &GetBlockDAGInfoResponse{}
	if err := c.invoke(ctx, methodGetBlockDAGInfo, &struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBlock fetches a single block, with its verbose merge-set data, by hash.
func (c *Client) GetBlock(ctx context.Context, hash string) (*RPCBlock, error) {
	req := &GetBlockRequest{Hash: hash, IncludeTransactions: false}
	resp := &GetBlockResponse{}
	err := c.conn.Invoke(ctx, methodGetBlock, req, resp, grpc.CallContentSubtype(jsonCodecName))
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: block %s: %v", apperr.ErrNodeNotFound, hash, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrNodeUnavailable, methodGetBlock, err)
	}
	return &resp.Block, nil
}

// GetBlocks fetches every block the node knows about after lowHash, in DAG
// topological order, used during bulk resync.
func (c *Client) GetBlocks(ctx context.Context, lowHash string) ([]RPCBlock, error) {
	req := &GetBlocksRequest{LowHash: lowHash, IncludeBlocks: true, IncludeTransactions: false}
	resp := &GetBlocksResponse{}
	if err := c.invoke(ctx, methodGetBlocks, req, resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// GetSink returns the node's current virtual tip hash.
func (c *Client) GetSink(ctx context.Context) (string, error) {
	resp := &GetSinkResponse{}
	if err := c.invoke(ctx, methodGetSink, &struct{}{}, resp); err != nil {
		return "", err
	}
	return resp.SinkHash, nil
}

// GetVirtualChainFromBlock reports the VSPC delta (removed, then added
// chain block hashes) since startHash.
func (c *Client) GetVirtualChainFromBlock(ctx context.Context, startHash string) (*GetVirtualChainFromBlockResponse, error) {
	req := &GetVirtualChainFromBlockRequest{StartHash: startHash}
	resp := &GetVirtualChainFromBlockResponse{}
	if err := c.invoke(ctx, methodGetVirtualChainFromBlock, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// BlockAddedStream yields BlockAddedNotification values as the node pushes
// them. Call Recv in a loop until it returns io.EOF or an error.
type BlockAddedStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next notification.
func (s *BlockAddedStream) Recv() (*BlockAddedNotification, error) {
	resp := &BlockAddedNotification{}
	if err := s.stream.RecvMsg(resp); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: block added stream: %v", apperr.ErrNodeUnavailable, err)
	}
	return resp, nil
}

// RegisterBlockAdded opens a server-streaming subscription for newly
// accepted blocks.
func (c *Client) RegisterBlockAdded(ctx context.Context) (*BlockAddedStream, error) {
	desc := &grpc.StreamDesc{ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, methodNotifyBlockAdded, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, fmt.Errorf("%w: register block added: %v", apperr.ErrNodeUnavailable, err)
	}
	if err := stream.SendMsg(&NotifyBlockAddedRequest{}); err != nil {
		return nil, fmt.Errorf("%w: register block added send: %v", apperr.ErrNodeUnavailable, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("%w: register block added close send: %v", apperr.ErrNodeUnavailable, err)
	}
	return &BlockAddedStream{stream: stream}, nil
}

// VirtualChainChangedStream yields VirtualChainChangedNotification values.
type VirtualChainChangedStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next notification.
func (s *VirtualChainChangedStream) Recv() (*VirtualChainChangedNotification, error) {
	resp := &VirtualChainChangedNotification{}
	if err := s.stream.RecvMsg(resp); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: virtual chain changed stream: %v", apperr.ErrNodeUnavailable, err)
	}
	return resp, nil
}

// RegisterVirtualChainChanged opens a server-streaming subscription for
// VSPC changes.
func (c *Client) RegisterVirtualChainChanged(ctx context.Context) (*VirtualChainChangedStream, error) {
	desc := &grpc.StreamDesc{ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, methodNotifyVirtualChainChanged, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, fmt.Errorf("%w: register virtual chain changed: %v", apperr.ErrNodeUnavailable, err)
	}
	if err := stream.SendMsg(&NotifyVirtualChainChangedRequest{}); err != nil {
		return nil, fmt.Errorf("%w: register virtual chain changed send: %v", apperr.ErrNodeUnavailable, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("%w: register virtual chain changed close send: %v", apperr.ErrNodeUnavailable, err)
	}
	return &VirtualChainChangedStream{stream: stream}, nil
}
