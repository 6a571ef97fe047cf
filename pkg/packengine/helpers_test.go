// SPDX-License-Identifier: MPL-2.0

package packengine

import (
	"maps"
	"slices"
)

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
