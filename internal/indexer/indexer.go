// Package indexer walks every pool on the main contract through mirror
// reads and produces an offline JSON document for dApp consumption.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/refs"
)

// ContractReader performs read-only calls against a contract's ABI. The
// production implementation simulates through the mirror.
type ContractReader interface {
	Read(ctx context.Context, contract refs.ContractRef, artifact, fn string, args ...interface{}) ([]interface{}, error)
}

// DefaultPrizeCap bounds per-pool prize iteration; pools past the cap get
// one synthetic entry instead.
const DefaultPrizeCap = 10

// DefaultThrottle paces mirror reads to stay well under public rate limits.
const DefaultThrottle = 300 * time.Millisecond

// Options select what one run indexes.
type Options struct {
	ActiveOnly bool
	PrizeCap   int           // 0 means DefaultPrizeCap
	Throttle   time.Duration // 0 means DefaultThrottle
}

// Indexer reads pool state in ascending id order and derives summaries.
type Indexer struct {
	Reader      ContractReader
	Main        refs.ContractRef
	PoolManager *refs.ContractRef // optional; enables community classification
	Environment string
	Logger      logging.Logger

	now func() time.Time
}

func New(reader ContractReader, main refs.ContractRef, poolManager *refs.ContractRef, environment string, logger logging.Logger) *Indexer {
	return &Indexer{
		Reader:      reader,
		Main:        main,
		PoolManager: poolManager,
		Environment: environment,
		Logger:      logger,
		now:         time.Now,
	}
}

// Run indexes all pools. Per-pool failures become status=error entries;
// only a failure to read the pool count aborts the run.
func (ix *Indexer) Run(ctx context.Context, opts Options) (*Document, error) {
	if opts.PrizeCap == 0 {
		opts.PrizeCap = DefaultPrizeCap
	}
	if opts.Throttle == 0 {
		opts.Throttle = DefaultThrottle
	}

	total, err := ix.poolCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading pool count: %w", err)
	}
	ix.Logger.Infof("indexing %d pools on %s", total, ix.Main.ID.String())

	doc := &Document{
		Metadata: Metadata{
			Version:           SchemaVersion,
			GeneratedAt:       ix.now().UTC(),
			Environment:       ix.Environment,
			LazyLottoContract: ix.Main.ID.String(),
			Filters:           Filters{ActiveOnly: opts.ActiveOnly},
		},
		Stats: Stats{TotalPoolsOnChain: int(total)},
		Pools: []PoolSummary{},
	}
	if ix.PoolManager != nil {
		doc.Metadata.PoolManagerContract = ix.PoolManager.ID.String()
	}

	for id := int64(0); id < total; id++ {
		if id > 0 {
			select {
			case <-time.After(opts.Throttle):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		summary := ix.indexPool(ctx, id, opts.PrizeCap)
		switch summary.Status {
		case StatusError:
			doc.Stats.Errors++
			ix.Logger.Warnf("pool %d: %s", id, summary.Error)
		case StatusActive:
			doc.Stats.ByStatus.Active++
		case StatusPaused:
			doc.Stats.ByStatus.Paused++
		case StatusClosed:
			doc.Stats.ByStatus.Closed++
		}
		if summary.Status != StatusError {
			if summary.IsCommunityPool {
				doc.Stats.CommunityPools++
			} else {
				doc.Stats.GlobalPools++
			}
		}

		if opts.ActiveOnly && summary.Status != StatusActive {
			continue
		}
		doc.Pools = append(doc.Pools, summary)
		doc.Stats.IndexedPools++
	}

	return doc, nil
}

func (ix *Indexer) poolCount(ctx context.Context) (int64, error) {
	ret, err := ix.Reader.Read(ctx, ix.Main, "LazyLotto", "getNumberOfPools")
	if err != nil {
		return 0, err
	}
	return bigReturn(ret, 0)
}

// indexPool builds one summary. Any read failure turns the pool into a
// status=error entry rather than aborting the whole run.
func (ix *Indexer) indexPool(ctx context.Context, id int64, prizeCap int) PoolSummary {
	summary := PoolSummary{ID: id, Prizes: []PrizeDescriptor{}}

	ret, err := ix.Reader.Read(ctx, ix.Main, "LazyLotto", "getPoolDetails", new(big.Int).SetInt64(id))
	if err != nil {
		summary.Status = StatusError
		summary.Error = err.Error()
		return summary
	}
	info, err := decodePoolDetails(ret)
	if err != nil {
		summary.Status = StatusError
		summary.Error = err.Error()
		return summary
	}

	summary.WinRate = info.winRate
	summary.WinRatePercent = winRatePercent(info.winRate)
	summary.EntryFee = info.entryFee.String()
	summary.PrizeCount = info.prizeCount
	summary.OutstandingEntries = info.outstandingEntries
	summary.TicketCID = info.ticketCID
	summary.WinCID = info.winCID
	summary.Status = deriveStatus(info.paused, info.closed)

	if token, err := refs.ParseToken(refs.EvmHex(info.feeToken)); err == nil {
		summary.FeeToken = token.String()
	} else {
		summary.FeeToken = refs.EvmHex(info.feeToken)
	}
	if info.poolNft != (common.Address{}) {
		if token, err := refs.ParseToken(refs.EvmHex(info.poolNft)); err == nil {
			summary.PoolNftToken = token.String()
		}
	}

	if info.prizeCount > int64(prizeCap) {
		summary.Prizes = []PrizeDescriptor{{
			Note: fmt.Sprintf("%d prizes (too many to index individually)", info.prizeCount),
		}}
	} else {
		for i := int64(0); i < info.prizeCount; i++ {
			prize, err := ix.readPrize(ctx, id, i)
			if err != nil {
				summary.Prizes = append(summary.Prizes, PrizeDescriptor{
					Note: fmt.Sprintf("prize %d unreadable: %v", i, err),
				})
				continue
			}
			summary.Prizes = append(summary.Prizes, prize)
		}
	}

	if ix.PoolManager != nil {
		owner, community, err := ix.classify(ctx, id)
		if err != nil {
			ix.Logger.Debugf("pool %d classification: %v", id, err)
		} else {
			summary.OwnerAccount = owner
			summary.IsCommunityPool = community
		}
	}

	return summary
}

func (ix *Indexer) readPrize(ctx context.Context, poolID, prizeIdx int64) (PrizeDescriptor, error) {
	ret, err := ix.Reader.Read(ctx, ix.Main, "LazyLotto", "getPoolPrizePackage",
		new(big.Int).SetInt64(poolID), new(big.Int).SetInt64(prizeIdx))
	if err != nil {
		return PrizeDescriptor{}, err
	}
	if len(ret) < 3 {
		return PrizeDescriptor{}, fmt.Errorf("prize tuple has %d values", len(ret))
	}
	tokenAddr, ok := ret[0].(common.Address)
	if !ok {
		return PrizeDescriptor{}, fmt.Errorf("prize token is %T", ret[0])
	}
	amount, ok := ret[1].(*big.Int)
	if !ok {
		return PrizeDescriptor{}, fmt.Errorf("prize amount is %T", ret[1])
	}
	collections, err := bigReturn(ret, 2)
	if err != nil {
		return PrizeDescriptor{}, err
	}

	desc := PrizeDescriptor{Amount: amount.String(), NftCollections: int(collections)}
	if token, err := refs.ParseToken(refs.EvmHex(tokenAddr)); err == nil {
		desc.Token = token.String()
	} else {
		desc.Token = refs.EvmHex(tokenAddr)
	}
	return desc, nil
}

// classify reads the pool's owner from the pool manager. A non-sentinel
// owner marks a community pool.
func (ix *Indexer) classify(ctx context.Context, poolID int64) (string, bool, error) {
	ret, err := ix.Reader.Read(ctx, *ix.PoolManager, "LazyLottoPoolManager", "getPoolOwner",
		new(big.Int).SetInt64(poolID))
	if err != nil {
		return "", false, err
	}
	if len(ret) == 0 {
		return "", false, fmt.Errorf("empty owner return")
	}
	owner, ok := ret[0].(common.Address)
	if !ok {
		return "", false, fmt.Errorf("owner is %T", ret[0])
	}
	if owner == (common.Address{}) {
		return "", false, nil
	}
	if acct, err := refs.ParseAccount(refs.EvmHex(owner)); err == nil {
		return acct.String(), true, nil
	}
	return refs.EvmHex(owner), true, nil
}

// deriveStatus maps the two on-chain flags: closed wins over paused.
func deriveStatus(paused, closed bool) PoolStatus {
	switch {
	case closed:
		return StatusClosed
	case paused:
		return StatusPaused
	default:
		return StatusActive
	}
}

type poolDetails struct {
	ticketCID          string
	winCID             string
	winRate            uint64
	entryFee           *big.Int
	prizeCount         int64
	outstandingEntries int64
	poolNft            common.Address
	paused             bool
	closed             bool
	feeToken           common.Address
}

// decodePoolDetails maps the getPoolDetails tuple: (ticket CID, win CID,
// win rate, entry fee, prize count, outstanding entries, pool NFT token,
// paused, closed, fee token).
func decodePoolDetails(ret []interface{}) (*poolDetails, error) {
	if len(ret) < 10 {
		return nil, fmt.Errorf("pool details tuple has %d values, want 10", len(ret))
	}
	d := &poolDetails{}
	var ok bool
	if d.ticketCID, ok = ret[0].(string); !ok {
		return nil, fmt.Errorf("ticket CID is %T", ret[0])
	}
	if d.winCID, ok = ret[1].(string); !ok {
		return nil, fmt.Errorf("win CID is %T", ret[1])
	}
	winRate, ok := ret[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("win rate is %T", ret[2])
	}
	d.winRate = winRate.Uint64()
	if d.entryFee, ok = ret[3].(*big.Int); !ok {
		return nil, fmt.Errorf("entry fee is %T", ret[3])
	}
	prizeCount, ok := ret[4].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("prize count is %T", ret[4])
	}
	d.prizeCount = prizeCount.Int64()
	outstanding, ok := ret[5].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("outstanding entries is %T", ret[5])
	}
	d.outstandingEntries = outstanding.Int64()
	if d.poolNft, ok = ret[6].(common.Address); !ok {
		return nil, fmt.Errorf("pool NFT token is %T", ret[6])
	}
	if d.paused, ok = ret[7].(bool); !ok {
		return nil, fmt.Errorf("paused is %T", ret[7])
	}
	if d.closed, ok = ret[8].(bool); !ok {
		return nil, fmt.Errorf("closed is %T", ret[8])
	}
	if d.feeToken, ok = ret[9].(common.Address); !ok {
		return nil, fmt.Errorf("fee token is %T", ret[9])
	}
	return d, nil
}

func bigReturn(ret []interface{}, idx int) (int64, error) {
	if idx >= len(ret) {
		return 0, fmt.Errorf("return tuple has %d values, want index %d", len(ret), idx)
	}
	v, ok := ret[idx].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("return value %d is %T, want *big.Int", idx, ret[idx])
	}
	return v.Int64(), nil
}
