// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

package suite

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"

	"github.com/squawkvm/squawk/common"
)

// Registry is the process-wide suite table: every suite currently loaded,
// keyed by suite_no, with a name index for parent-chain resolution and a
// two-tier cache in front of suitedb for classes looked up by fully
// qualified name.
//
// The split mirrors the teacher's trie/wrap_database.go clean-cache/
// dirty-map pattern: a bounded fastcache.Cache holds serialized "clean"
// lookup results (name -> ClassID) that survive eviction cheaply, while a
// golang-lru.Cache of *Suite holds "hot" suites fully resolved in memory
// so the translator and interpreter don't re-walk the parent chain on
// every resolution.
type Registry struct {
	mu sync.RWMutex

	bySuiteNo map[uint16]*Suite
	byName    map[string]uint16

	// lookupCache holds a small serialized positive-lookup cache: key is
	// "suiteName\x00className", value is the 4-byte encoded ClassID. It
	// exists to make repeated cross-suite symbolic lookups (spec §4.B
	// "Symbolic reference resolution") cheap without re-walking parents.
	lookupCache *fastcache.Cache

	// hot is an LRU of the most recently resolved suites, bounding how many
	// full Suite objects are pinned eagerly versus left to bySuiteNo's plain
	// map (which never evicts -- a suite unloads only via Unload).
	hot *lru.Cache
}

// NewRegistry builds a Registry with a lookupCache sized in bytes and a hot
// set holding up to hotSuites entries. A non-positive size selects that
// cache's default: 64 KiB of lookup cache, 4 hot suites.
func NewRegistry(lookupCacheBytes, hotSuites int) *Registry {
	if lookupCacheBytes <= 0 {
		lookupCacheBytes = 1 << 16
	}
	if hotSuites <= 0 {
		hotSuites = 4
	}
	hot, err := lru.New(hotSuites)
	if err != nil {
		// Only returns an error for size <= 0, which the defaults above
		// rule out.
		panic(err)
	}
	return &Registry{
		bySuiteNo:   make(map[uint16]*Suite),
		byName:      make(map[string]uint16),
		lookupCache: fastcache.New(lookupCacheBytes),
		hot:         hot,
	}
}

// Register adds a freshly built (and typically already Finalized) suite to
// the registry under its own suite_no and name.
func (r *Registry) Register(s *Suite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySuiteNo[s.no]; exists {
		return common.ErrSuiteAlreadyRegistered
	}
	r.bySuiteNo[s.no] = s
	r.byName[s.name] = s.no
	r.hot.Add(s.no, s)
	return nil
}

// Unload removes a suite from the registry. Callers must ensure no isolate
// still references classes from it; the registry itself enforces nothing.
// Lookup-cache entries that point into the unloaded suite stay in the
// cache; Resolve falls back to a full lookup when the suite an entry names
// is no longer registered.
func (r *Registry) Unload(no uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bySuiteNo[no]
	if !ok {
		return
	}
	delete(r.bySuiteNo, no)
	delete(r.byName, s.name)
	r.hot.Remove(no)
}

func (r *Registry) bySuite(no uint16) (*Suite, bool) {
	if v, ok := r.hot.Get(no); ok {
		return v.(*Suite), true
	}
	r.mu.RLock()
	s, ok := r.bySuiteNo[no]
	r.mu.RUnlock()
	if ok {
		r.hot.Add(no, s)
	}
	return s, ok
}

// Resolve walks suite s's parent chain (spec §3 "Suite": "an ordered list
// of parent suite names") looking up className, returning the first match.
// This is the cross-suite counterpart to Suite.LookupByName.
func (r *Registry) Resolve(s *Suite, className string) (*Klass, bool) {
	cacheKey := append([]byte(s.name+"\x00"), []byte(className)...)
	if cached, ok := r.lookupCache.HasGet(nil, cacheKey); ok && len(cached) == 4 {
		suiteNo := uint16(cached[0]) | uint16(cached[1])<<8
		classNo := uint16(cached[2]) | uint16(cached[3])<<8
		if owner, ok := r.bySuite(suiteNo); ok {
			if k, ok := owner.Lookup(classNo); ok {
				return k, true
			}
		}
	}

	if k, ok := s.LookupByName(className); ok {
		r.cacheHit(cacheKey, s.no, k)
		return k, true
	}
	for _, parentName := range s.parents {
		r.mu.RLock()
		parentNo, ok := r.byName[parentName]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		parent, ok := r.bySuite(parentNo)
		if !ok {
			continue
		}
		if k, ok := r.Resolve(parent, className); ok {
			r.cacheHit(cacheKey, k.ID().SuiteNo(), k)
			return k, true
		}
	}
	return nil, false
}

func (r *Registry) cacheHit(key []byte, suiteNo uint16, k *Klass) {
	val := []byte{byte(suiteNo), byte(suiteNo >> 8), byte(k.ID().ClassNo()), byte(k.ID().ClassNo() >> 8)}
	r.lookupCache.Set(key, val)
}

// ResolveID looks up a Klass directly by its ClassID, for callers (the
// interpreter's assignability checks, array-store checks) that already
// hold an id rather than a symbolic name.
func (r *Registry) ResolveID(id common.ClassID) (*Klass, bool) {
	s, ok := r.bySuite(id.SuiteNo())
	if !ok {
		return nil, false
	}
	return s.Lookup(id.ClassNo())
}

// ResolveFrom resolves className starting from the suite that owns k,
// walking k's suite's parent chain exactly as Resolve does. The
// interpreter uses this to turn a symbolic Owner/MethodOwner/ClassName
// string carried on an instruction into a Klass, without itself needing
// to track which Suite a given Klass came from.
func (r *Registry) ResolveFrom(k *Klass, className string) (*Klass, bool) {
	owner, ok := r.bySuite(k.ID().SuiteNo())
	if !ok {
		return nil, false
	}
	return r.Resolve(owner, className)
}

// SuiteByNo is a convenience lookup used by the interpreter when it only
// has a class id (and therefore a suite_no) in hand, e.g. resolving the
// owning suite of a Klass reached through a heap object's class offset.
func (r *Registry) SuiteByNo(no uint16) (*Suite, bool) {
	return r.bySuite(no)
}

// SuiteByName is a convenience lookup used by the loader (classfile
// package) when resolving an explicit suite-qualified reference.
func (r *Registry) SuiteByName(name string) (*Suite, bool) {
	r.mu.RLock()
	no, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.bySuite(no)
}
