package nodeclient

// RPCBlockVerboseData carries the node's own merge-set classification for a
// block, as computed by its local GHOSTDAG view. The processing tier copies
// this into the store rather than recomputing GHOSTDAG itself.
type RPCBlockVerboseData struct {
	Hash                string   `json:"hash"`
	DifficultyRatio     float64  `json:"difficulty"`
	SelectedParentHash  string   `json:"selectedParentHash"`
	TransactionIDs      []string `json:"transactionIds"`
	IsHeaderOnly        bool     `json:"isHeaderOnly"`
	BlueScore           uint64   `json:"blueScore"`
	ChildrenHashes      []string `json:"childrenHashes"`
	MergeSetBluesHashes []string `json:"mergeSetBluesHashes"`
	MergeSetRedsHashes  []string `json:"mergeSetRedsHashes"`
	IsChainBlock        bool     `json:"isChainBlock"`
}

// RPCBlockHeader is the subset of header fields the processing tier reads.
type RPCBlockHeader struct {
	Hash         string   `json:"hash"`
	Version      uint32   `json:"version"`
	ParentHashes []string `json:"parents"`
	Timestamp    int64    `json:"timestamp"`
	DAAScore     uint64   `json:"daaScore"`
	BlueScore    uint64   `json:"blueScore"`
}

// RPCBlock is a node block as delivered over the wire: header plus the
// node-computed verbose data.
type RPCBlock struct {
	Header      RPCBlockHeader      `json:"header"`
	VerboseData RPCBlockVerboseData `json:"verboseData"`
}

// GetInfoResponse answers GetInfo.
type GetInfoResponse struct {
	ServerVersion    string `json:"serverVersion"`
	IsUTXOIndexed    bool   `json:"isUtxoIndexed"`
	IsSynced         bool   `json:"isSynced"`
	HasNotifyCommand bool   `json:"hasNotifyCommand"`
}

// GetBlockDAGInfoResponse answers GetBlockDagInfo.
type GetBlockDAGInfoResponse struct {
	NetworkName      string   `json:"networkName"`
	BlockCount       uint64   `json:"blockCount"`
	HeaderCount      uint64   `json:"headerCount"`
	TipHashes        []string `json:"tipHashes"`
	VirtualDAAScore  uint64   `json:"virtualDaaScore"`
	PruningPointHash string   `json:"pruningPointHash"`
}

// GetBlockRequest requests a single block by hash.
type GetBlockRequest struct {
	Hash                string `json:"hash"`
	IncludeTransactions bool   `json:"includeTransactions"`
}

// GetBlockResponse answers GetBlock.
type GetBlockResponse struct {
	Block RPCBlock `json:"block"`
}

// GetBlocksRequest requests every block after lowHash, in DAG order.
type GetBlocksRequest struct {
	LowHash             string `json:"lowHash"`
	IncludeBlocks       bool   `json:"includeBlocks"`
	IncludeTransactions bool   `json:"includeTransactions"`
}

// GetBlocksResponse answers GetBlocks.
type GetBlocksResponse struct {
	BlockHashes []string   `json:"blockHashes"`
	Blocks      []RPCBlock `json:"blocks"`
}

// GetSinkResponse answers GetSink: the node's current virtual tip.
type GetSinkResponse struct {
	SinkHash string `json:"sinkHash"`
}

// GetVirtualChainFromBlockRequest requests the VSPC delta since startHash.
type GetVirtualChainFromBlockRequest struct {
	StartHash                     string `json:"startHash"`
	IncludeAcceptedTransactionIDs bool   `json:"includeAcceptedTransactionIds"`
}

// GetVirtualChainFromBlockResponse answers GetVirtualChainFromBlock.
type GetVirtualChainFromBlockResponse struct {
	RemovedChainBlockHashes []string `json:"removedChainBlockHashes"`
	AddedChainBlockHashes   []string `json:"addedChainBlockHashes"`
}

// BlockAddedNotification is pushed for every new block the node accepts.
type BlockAddedNotification struct {
	Block RPCBlock `json:"block"`
}

// VirtualChainChangedNotification is pushed whenever the node's VSPC shifts.
type VirtualChainChangedNotification struct {
	RemovedChainBlockHashes []string `json:"removedChainBlockHashes"`
	AddedChainBlockHashes   []string `json:"addedChainBlockHashes"`
}

// NotifyBlockAddedRequest subscribes to block-added notifications.
type NotifyBlockAddedRequest struct{}

// NotifyVirtualChainChangedRequest subscribes to VSPC-changed notifications.
type NotifyVirtualChainChangedRequest struct {
	IncludeAcceptedTransactionIDs bool `json:"includeAcceptedTransactionIds"`
}
