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

// Package emit implements the translator's final stage (spec §4.F): slot
// assignment (including the REVERSE_PARAMETERS layout decision, see
// DESIGN.md), oop-map construction, and emission of the linear,
// reverse-growing method bytecode the interpreter (4.G) executes.
package emit

// ParamWidths parses a method descriptor's parameter list, returning one
// entry per declared parameter: 1 word, or 2 for long/double (JVM class
// file format §4.3.3's local-slot-width rule). Exported so the interpreter
// (4.G) can marshal a call's argument words into REVERSE_PARAMETERS order
// the same way ComputeSlotPlan derived it, without re-deriving parameter
// widths from the descriptor a second time.
func ParamWidths(descr string) []int {
	return paramWidths(descr)
}

func paramWidths(descr string) []int {
	i := 0
	if i >= len(descr) || descr[i] != '(' {
		return nil
	}
	i++
	var widths []int
	for i < len(descr) && descr[i] != ')' {
		switch descr[i] {
		case 'J', 'D':
			widths = append(widths, 2)
			i++
		case 'L':
			i++
			for i < len(descr) && descr[i] != ';' {
				i++
			}
			i++ // consume ';'
			widths = append(widths, 1)
		case '[':
			for i < len(descr) && descr[i] == '[' {
				i++
			}
			if i < len(descr) && descr[i] == 'L' {
				for i < len(descr) && descr[i] != ';' {
					i++
				}
				i++
			} else if i < len(descr) {
				i++
			}
			widths = append(widths, 1)
		default:
			widths = append(widths, 1)
			i++
		}
	}
	return widths
}
