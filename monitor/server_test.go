// Copyright 2015 The go-probeum Authors
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

package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/squawkvm/squawk/channel"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/isolate"
	"github.com/squawkvm/squawk/suite"
)

// newFixture builds the smallest registry/allocator pair a Scheduler needs;
// no classes are ever loaded through it in these tests.
func newFixture(t *testing.T) (*suite.Registry, *interp.Allocator) {
	t.Helper()
	reg := suite.NewRegistry(0, 0)
	su := suite.New(1, "test", nil)
	if err := reg.Register(su); err != nil {
		t.Fatalf("Register: %v", err)
	}
	heap, _ := interp.NewTypedHeap(1<<12, nil, reg)
	return reg, interp.NewAllocator(heap, 1<<12, false)
}

type stubIsolates struct{ isos []*isolate.Isolate }

func (s *stubIsolates) Isolates() []*isolate.Isolate { return s.isos }

type stubChannels struct {
	table *channel.Table
	depth int
}

func (s *stubChannels) Table() *channel.Table   { return s.table }
func (s *stubChannels) EventQueueDepth() int    { return s.depth }

func TestServerStatusReportsEmptyState(t *testing.T) {
	heap, _ := interp.NewTypedHeap(1<<12, nil, nil)
	alloc := interp.NewAllocator(heap, 1<<12, false)
	dispatch := channel.NewDispatcher(alloc)
	dispatch.Table().Create()

	srv := NewServer(&stubIsolates{}, &stubChannels{table: dispatch.Table(), depth: 0}, "127.0.0.1:0")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	srv.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Contexts) != 1 {
		t.Fatalf("want 1 context, got %d", len(snap.Contexts))
	}
	if len(snap.Isolates) != 0 {
		t.Fatalf("want 0 isolates, got %d", len(snap.Isolates))
	}
}

func TestServerSnapshotIncludesIsolateAndThreadState(t *testing.T) {
	reg, alloc := newFixture(t)
	sched := isolate.NewScheduler(reg, alloc, nil, nil)
	defer sched.Close()

	sched.NewIsolate("app:test.jar", "Main", nil)

	dispatch := channel.NewDispatcher(alloc)

	srv := NewServer(sched, dispatch, "127.0.0.1:0")
	snap := srv.snapshot()
	if len(snap.Isolates) != 1 {
		t.Fatalf("want 1 isolate, got %d", len(snap.Isolates))
	}
	if snap.Isolates[0].Class != "Main" {
		t.Fatalf("want Main, got %q", snap.Isolates[0].Class)
	}
}
