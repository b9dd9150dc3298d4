package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeByCreatedAtDesc(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	at := func(offset int) time.Time { return base.Add(time.Duration(offset) * time.Minute) }

	tests := []struct {
		name     string
		perShard [][]Order
		wantIDs  []int64
	}{
		{
			name:     "empty",
			perShard: [][]Order{nil, nil, nil, nil},
			wantIDs:  []int64{},
		},
		{
			name: "single_shard_keeps_order",
			perShard: [][]Order{
				{{ID: 2, CreatedAt: at(2)}, {ID: 1, CreatedAt: at(1)}},
				nil,
			},
			wantIDs: []int64{2, 1},
		},
		{
			name: "interleaves_across_shards",
			perShard: [][]Order{
				{{ID: 4, CreatedAt: at(4)}, {ID: 1, CreatedAt: at(1)}},
				{{ID: 3, CreatedAt: at(3)}},
				{{ID: 5, CreatedAt: at(5)}, {ID: 2, CreatedAt: at(2)}},
			},
			wantIDs: []int64{5, 4, 3, 2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := mergeByCreatedAtDesc(tt.perShard)

			ids := make([]int64, 0, len(merged))
			for _, o := range merged {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			for i := 1; i < len(merged); i++ {
				assert.False(t, merged[i-1].CreatedAt.Before(merged[i].CreatedAt),
					"results must be sorted by created_at descending")
			}
		})
	}
}

func TestMergeByCreatedAtDesc_UnionIsComplete(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	perShard := make([][]Order, 4)
	total := 0
	for s := range perShard {
		for i := 0; i < 5; i++ {
			total++
			perShard[s] = append(perShard[s], Order{
				ID:        int64(total),
				CreatedAt: base.Add(time.Duration(total) * time.Second),
			})
		}
	}

	merged := mergeByCreatedAtDesc(perShard)
	assert.Len(t, merged, total)

	seen := make(map[int64]bool)
	for _, o := range merged {
		seen[o.ID] = true
	}
	assert.Len(t, seen, total, "every shard row appears exactly once")
}
