package indexer

import "time"

// SchemaVersion identifies the output document layout for dApp consumers.
const SchemaVersion = "1.0"

// Document is the full index emitted by one run.
type Document struct {
	Metadata Metadata      `json:"metadata"`
	Stats    Stats         `json:"stats"`
	Pools    []PoolSummary `json:"pools"`
}

type Metadata struct {
	Version             string    `json:"version"`
	GeneratedAt         time.Time `json:"generatedAt"`
	Environment         string    `json:"environment"`
	LazyLottoContract   string    `json:"lazyLottoContract"`
	PoolManagerContract string    `json:"poolManagerContract,omitempty"`
	Filters             Filters   `json:"filters"`
}

type Filters struct {
	ActiveOnly bool `json:"activeOnly"`
}

type Stats struct {
	TotalPoolsOnChain int      `json:"totalPoolsOnChain"`
	IndexedPools      int      `json:"indexedPools"`
	ByStatus          ByStatus `json:"byStatus"`
	CommunityPools    int      `json:"communityPools"`
	GlobalPools       int      `json:"globalPools"`
	Errors            int      `json:"errors"`
}

type ByStatus struct {
	Active int `json:"active"`
	Paused int `json:"paused"`
	Closed int `json:"closed"`
}

// PoolStatus is the derived operational state. Closed wins over paused.
type PoolStatus string

const (
	StatusActive PoolStatus = "active"
	StatusPaused PoolStatus = "paused"
	StatusClosed PoolStatus = "closed"
	StatusError  PoolStatus = "error"
)

// PoolSummary is one indexed pool. Never authoritative; the chain is.
type PoolSummary struct {
	ID     int64      `json:"id"`
	Status PoolStatus `json:"status"`

	// WinRate is the raw on-chain value in parts per hundred-million;
	// WinRatePercent is the display conversion.
	WinRate        uint64  `json:"winRate"`
	WinRatePercent float64 `json:"winRatePercent"`

	EntryFee           string `json:"entryFee"`
	FeeToken           string `json:"feeToken"`
	PrizeCount         int64  `json:"prizeCount"`
	OutstandingEntries int64  `json:"outstandingEntries"`
	TicketCID          string `json:"ticketCid,omitempty"`
	WinCID             string `json:"winCid,omitempty"`
	PoolNftToken       string `json:"poolNftToken,omitempty"`

	OwnerAccount    string `json:"ownerAccount,omitempty"`
	IsCommunityPool bool   `json:"isCommunityPool"`

	// Prizes is always a list, empty for prizeCount == 0.
	Prizes []PrizeDescriptor `json:"prizes"`

	Error string `json:"error,omitempty"`
}

// PrizeDescriptor is a compact prize-package summary. Over the per-pool cap
// a single synthetic entry carries only a note.
type PrizeDescriptor struct {
	Token          string `json:"token,omitempty"`
	Amount         string `json:"amount,omitempty"`
	NftCollections int    `json:"nftCollections,omitempty"`
	Note           string `json:"note,omitempty"`
}

// winRatePercent converts parts-per-hundred-million to percent.
func winRatePercent(raw uint64) float64 {
	return float64(raw) / 1_000_000
}
