// Package snapshot splits a board payload into named JSON buckets so SQL
// backends can store it as one row per bucket.
package snapshot

import (
	"encoding/json"
	"fmt"

	"schedboard/pkg/domain"
)

// Bucket names in write order.
const (
	BucketOrders   = "orders"
	BucketRuns     = "runs"
	BucketCells    = "cells"
	BucketTrucks   = "trucks"
	BucketSettings = "settings"
)

// Buckets lists every bucket a complete snapshot contains.
var Buckets = []string{BucketOrders, BucketRuns, BucketCells, BucketTrucks, BucketSettings}

type settings struct {
	VisibleWeeks *int     `json:"visibleWeeks,omitempty"`
	BlockedDates []string `json:"blockedDates"`
}

// Encode marshals each part of p into its bucket.
func Encode(p domain.Payload) (map[string][]byte, error) {
	parts := map[string]any{
		BucketOrders:   p.Orders,
		BucketRuns:     p.Runs,
		BucketCells:    p.Cells,
		BucketTrucks:   p.Trucks,
		BucketSettings: settings{VisibleWeeks: p.VisibleWeeks, BlockedDates: p.BlockedDates},
	}
	out := make(map[string][]byte, len(parts))
	for _, bucket := range Buckets {
		data, err := json.Marshal(parts[bucket])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// Decode rebuilds a payload from buckets. Unknown buckets are ignored and
// missing ones leave their part empty. An empty map yields domain.ErrNoSnapshot.
func Decode(buckets map[string][]byte) (domain.Payload, error) {
	if len(buckets) == 0 {
		return domain.Payload{}, domain.ErrNoSnapshot
	}
	var p domain.Payload
	var st settings
	targets := map[string]any{
		BucketOrders:   &p.Orders,
		BucketRuns:     &p.Runs,
		BucketCells:    &p.Cells,
		BucketTrucks:   &p.Trucks,
		BucketSettings: &st,
	}
	for bucket, data := range buckets {
		target, ok := targets[bucket]
		if !ok || len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, target); err != nil {
			return domain.Payload{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	p.VisibleWeeks = st.VisibleWeeks
	p.BlockedDates = st.BlockedDates
	return p, nil
}
