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

package interp

import "github.com/squawkvm/squawk/suite"

// fieldOffset resolves name to its instance-word offset on k, by position
// in k.Metadata().FieldNames. SetLayout's caller is responsible for
// presenting that slice already flattened superclass-first, so offset 0 is
// always the most-base class's first field -- the same dense, inherited-
// fields-first layout CLDC classes use.
func fieldOffset(k *suite.Klass, name string) (int, bool) {
	md := k.Metadata()
	if md == nil {
		return 0, false
	}
	for i, n := range md.FieldNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
