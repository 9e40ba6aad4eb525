// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"github.com/tidwall/gjson"

	"github.com/pdiddy/citeconv/pkg/types"
)

var sides = []string{"source", "target"}

// harvestIDs collects every raw identifier in a record: entity identifiers
// as resources, creator identifiers as agents.
func harvestIDs(line []byte) (br, ra []types.RawIdentifier) {
	for _, side := range sides {
		br = appendRaw(br, gjson.GetBytes(line, side+".identifier"))
		gjson.GetBytes(line, side+".creator").ForEach(func(_, creator gjson.Result) bool {
			ra = appendRaw(ra, creator.Get("identifier"))
			return true
		})
	}
	return br, ra
}

func appendRaw(dst []types.RawIdentifier, ids gjson.Result) []types.RawIdentifier {
	ids.ForEach(func(_, id gjson.Result) bool {
		value := id.Get("identifier").String()
		if value == "" {
			return true
		}
		dst = append(dst, types.RawIdentifier{
			ID:     value,
			Schema: id.Get("schema").String(),
			URL:    id.Get("url").String(),
		})
		return true
	})
	return dst
}
