// Copyright 2021 The go-probeum Authors
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

package classfile

import (
	"sync"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/log"
	"github.com/squawkvm/squawk/suite"
)

var log_ = log.New("component", "classfile")

// Loader is the class-file loading front end for one suite: it parses and
// verifies class files, interns their names into the suite (assigning a
// ClassID but leaving the Klass in state LOADING for the IR builder to
// fill in), and maintains a bloom filter of names it has already seen so
// repeated negative lookups don't require re-parsing anything.
type Loader struct {
	mu     sync.Mutex
	s      *suite.Suite
	bloom  *classBloom
	loaded map[string]*RawClass
}

// NewLoader creates a Loader bound to suite s, sizing its bloom filter for
// an expected number of classes (a rough estimate is fine; the filter
// degrades gracefully to more false positives, never false negatives).
func NewLoader(s *suite.Suite, expectedClasses int) *Loader {
	return &Loader{
		s:      s,
		bloom:  newClassBloom(uint64(expectedClasses)),
		loaded: make(map[string]*RawClass),
	}
}

// LoadBytes parses, verifies and interns one class file's bytes. On
// success it returns the RawClass (for the IR builder to consume) and the
// Klass now registered (still LOADING) in the suite. On failure the
// error is one of the spec §4.D translator errors; parse and legality
// failures return before the class is interned, so no Klass is created
// for them.
func (l *Loader) LoadBytes(data []byte) (*RawClass, *suite.Klass, error) {
	rc, err := Parse(data)
	if err != nil {
		log_.Warn("class parse failed", "err", err)
		return nil, nil, err
	}
	if err := Verify(rc); err != nil {
		log_.Warn("class failed legality check", "class", rc.ThisClass, "err", err)
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k, err := l.s.Intern(rc.ThisClass)
	if err != nil {
		return nil, nil, err
	}
	l.loaded[rc.ThisClass] = rc
	l.bloom.add(rc.ThisClass)
	return rc, k, nil
}

// RawClassFor returns the previously loaded RawClass for name, if any.
func (l *Loader) RawClassFor(name string) (*RawClass, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc, ok := l.loaded[name]
	return rc, ok
}

// MightExist is the bloom-filter fast path for negative lookups: a false
// result means the class is definitely not loaded under this loader, so
// callers can skip walking the parent chain entirely. Nothing else in the
// loader consults the filter.
func (l *Loader) MightExist(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bloom.mightContain(name)
}

// ResolveSuper looks up rc's declared superclass via registry r, following
// the suite's parent chain, and fails with NoClassDefFoundError if it is
// not found, or ClassCircularityError if resolving it would revisit rc's
// own class (a self-referential or mutually-referential supertype chain).
func ResolveSuper(r *suite.Registry, s *suite.Suite, rc *RawClass, seen map[string]bool) (*suite.Klass, error) {
	if rc.SuperClass == "" {
		return nil, nil // java.lang.Object
	}
	seen[rc.ThisClass] = true
	if seen[rc.SuperClass] {
		return nil, common.ErrClassCircularity
	}
	k, ok := r.Resolve(s, rc.SuperClass)
	if !ok {
		return nil, common.ErrNoClassDef
	}
	return k, nil
}
