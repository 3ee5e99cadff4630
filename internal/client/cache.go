// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"evalsocket.dev/evalsocket/internal/protocol"
)

// cacheEntry holds the last request sent for one kind and its decoded response.
type cacheEntry struct {
	request  string
	response []float64
}

// responseCache remembers one exchange per kind. Encoded requests always start
// with "s ", so the empty initial request never matches and the first
// evaluation of each kind is a miss.
type responseCache struct {
	entries map[protocol.Kind]cacheEntry
}

func newResponseCache() *responseCache {
	c := &responseCache{entries: make(map[protocol.Kind]cacheEntry, len(protocol.Kinds))}
	for _, k := range protocol.Kinds {
		c.entries[k] = cacheEntry{}
	}
	return c
}

// get returns a copy of the stored response when request matches the last one
// stored for k.
func (c *responseCache) get(k protocol.Kind, request string) ([]float64, bool) {
	e := c.entries[k]
	if e.request == "" || e.request != request {
		return nil, false
	}
	return copyValues(e.response), true
}

// put overwrites the slot of k.
func (c *responseCache) put(k protocol.Kind, request string, response []float64) {
	c.entries[k] = cacheEntry{
		request:  request,
		response: copyValues(response),
	}
}

func copyValues(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
