package ethrpc

import (
	"context"
	"errors"
	"math/big"
)

// RewardStats aggregates min/avg/max priority fee for one percentile.
type RewardStats struct {
	Min *big.Int `json:"min"`
	Avg *big.Int `json:"avg"`
	Max *big.Int `json:"max"`
}

// FeeHistoryStats returns reward stats over the last blocks for the given
// percentiles, plus the newest base fee reported by the node.
func (c *Client) FeeHistoryStats(ctx context.Context, blocks uint64, percentiles []int) (map[int]RewardStats, *big.Int, error) {
	if blocks == 0 {
		blocks = 20
	}
	if len(percentiles) == 0 {
		percentiles = []int{50, 95, 99}
	}
	pct := make([]float64, len(percentiles))
	for i, p := range percentiles {
		pct[i] = float64(p)
	}
	cctx, cancel := c.withTimeout(ctx)
	defer cancel()
	fh, err := c.ec.FeeHistory(cctx, blocks, nil, pct)
	if err != nil {
		return nil, nil, err
	}
	if len(fh.Reward) == 0 {
		return nil, nil, errors.New("feeHistory: empty reward")
	}

	res := make(map[int]RewardStats, len(percentiles))
	for _, p := range percentiles {
		res[p] = RewardStats{Avg: new(big.Int), Max: new(big.Int)}
	}
	rows := 0
	for _, row := range fh.Reward {
		rows++
		for j := 0; j < len(percentiles) && j < len(row); j++ {
			v := row[j]
			if v == nil {
				continue
			}
			st := res[percentiles[j]]
			if st.Min == nil || v.Cmp(st.Min) < 0 {
				st.Min = new(big.Int).Set(v)
			}
			if v.Cmp(st.Max) > 0 {
				st.Max = new(big.Int).Set(v)
			}
			st.Avg.Add(st.Avg, v)
			res[percentiles[j]] = st
		}
	}
	for p, st := range res {
		st.Avg.Div(st.Avg, big.NewInt(int64(rows)))
		if st.Min == nil {
			st.Min = new(big.Int)
		}
		res[p] = st
	}

	var baseFee *big.Int
	if n := len(fh.BaseFee); n > 0 && fh.BaseFee[n-1] != nil {
		baseFee = new(big.Int).Set(fh.BaseFee[n-1])
	}
	return res, baseFee, nil
}
