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

package channel

import (
	"strings"
	"testing"
	"time"

	"github.com/squawkvm/squawk/common"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/object"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	heap, _ := interp.NewTypedHeap(1<<14, nil, nil)
	alloc := interp.NewAllocator(heap, 1<<14, false)
	return NewDispatcher(alloc)
}

func TestContextCreateAndDelete(t *testing.T) {
	d := newDispatcher(t)

	id := d.execute(common.GlobalCreateContext, 0, 0, make([]int32, 6))
	if id <= 0 {
		t.Fatalf("want a positive context id, got %d", id)
	}
	if _, ok := d.table.Get(id); !ok {
		t.Fatalf("context %d not registered", id)
	}

	res := d.execute(common.GlobalDeleteContext, id, 0, make([]int32, 6))
	if res != common.ResultOK {
		t.Fatalf("want ResultOK, got %d", res)
	}
	if _, ok := d.table.Get(id); ok {
		t.Fatalf("context %d still registered after delete", id)
	}

	if res := d.execute(common.GlobalDeleteContext, id, 0, make([]int32, 6)); res != common.ResultBadContext {
		t.Fatalf("want ResultBadContext for double delete, got %d", res)
	}
}

func TestGenericChannelStreamRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()

	writeID := d.connectionOpenURL(ctx, "generic://scratch", ModeWrite, common.ChannelTypeGeneric)
	if writeID <= 0 {
		t.Fatalf("open for write failed: %d", writeID)
	}
	wch, ok := ctx.channel(writeID)
	if !ok {
		t.Fatalf("channel %d not found", writeID)
	}
	payload := []byte("hello squawk")
	for _, b := range payload {
		if res := d.streamOp(ctx, wch, common.StreamWriteByte, []int32{int32(b)}); res != common.ResultOK {
			t.Fatalf("WriteByte: %d", res)
		}
	}
	if res := d.streamOp(ctx, wch, common.StreamFlush, nil); res != common.ResultOK {
		t.Fatalf("Flush: %d", res)
	}
	ctx.freeChannel(writeID)

	readID := d.connectionOpenURL(ctx, "generic://scratch", ModeRead, common.ChannelTypeGeneric)
	if readID <= 0 {
		t.Fatalf("open for read failed: %d", readID)
	}
	rch, _ := ctx.channel(readID)

	var got []byte
	for {
		b := d.streamOp(ctx, rch, common.StreamReadByte, nil)
		if b == -1 {
			break
		}
		got = append(got, byte(b))
	}
	if string(got) != string(payload) {
		t.Fatalf("want %q, got %q", payload, got)
	}
}

func TestStreamAvailableMarkReset(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()

	wid := d.connectionOpenURL(ctx, "generic://markreset", ModeWrite, common.ChannelTypeGeneric)
	wch, _ := ctx.channel(wid)
	for _, b := range []byte("abcdef") {
		d.streamOp(ctx, wch, common.StreamWriteByte, []int32{int32(b)})
	}
	d.streamOp(ctx, wch, common.StreamFlush, nil)
	ctx.freeChannel(wid)

	rid := d.connectionOpenURL(ctx, "generic://markreset", ModeRead, common.ChannelTypeGeneric)
	rch, _ := ctx.channel(rid)

	if n := d.streamOp(ctx, rch, common.StreamAvailable, nil); n != 6 {
		t.Fatalf("want 6 available, got %d", n)
	}
	d.streamOp(ctx, rch, common.StreamReadByte, nil) // consume 'a'
	d.streamOp(ctx, rch, common.StreamMark, nil)
	d.streamOp(ctx, rch, common.StreamReadByte, nil) // consume 'b'
	if res := d.streamOp(ctx, rch, common.StreamReset, nil); res != common.ResultOK {
		t.Fatalf("Reset: %d", res)
	}
	if b := d.streamOp(ctx, rch, common.StreamReadByte, nil); b != int32('b') {
		t.Fatalf("want 'b' after reset, got %q", rune(b))
	}
}

func TestConnectionOpenBadScheme(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()

	id := d.connectionOpenURL(ctx, "nope://wherever", ModeRead, common.ChannelTypeGeneric)
	if id != common.ResultException {
		t.Fatalf("want ResultException for unknown scheme, got %d", id)
	}
	var msg []byte
	for {
		b := ctx.getError()
		if b == 0 {
			break
		}
		msg = append(msg, byte(b))
	}
	if !strings.Contains(string(msg), "bad channel parameter") {
		t.Fatalf("want error recorded, got %q", msg)
	}
}

func TestContextGetResultRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()

	ctx.setResult(0x1_0000_0002)
	if got := d.execute(common.ContextGetResult, ctx.ID, 0, make([]int32, 6)); got != 2 {
		t.Fatalf("want low word 2, got %d", got)
	}
	if got := d.execute(common.ContextGetResult2, ctx.ID, 0, make([]int32, 6)); got != 1 {
		t.Fatalf("want high word 1, got %d", got)
	}
}

func TestContextGetErrorDrainsByteByByte(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()
	ctx.setError("oops")

	var got []byte
	for {
		b := ctx.getError()
		if b == 0 {
			break
		}
		got = append(got, byte(b))
	}
	if string(got) != "oops" {
		t.Fatalf("want oops, got %q", got)
	}
	if b := ctx.getError(); b != 0 {
		t.Fatalf("want 0 once drained, got %d", b)
	}
}

func TestReservedStdioChannelIsStableAcrossCalls(t *testing.T) {
	d := newDispatcher(t)
	ctx := d.table.Create()

	first := d.getReserved(ctx, common.ChannelStdio)
	second := d.getReserved(ctx, common.ChannelStdio)
	if first != second {
		t.Fatalf("want the same stdio channel id each call, got %d then %d", first, second)
	}
	if first != common.ChannelStdio {
		t.Fatalf("want stdio channel id %d, got %d", common.ChannelStdio, first)
	}
}

func TestEventHubPostGetFIFO(t *testing.T) {
	d := newDispatcher(t)

	if id := d.events.Get(); id != 0 {
		t.Fatalf("want 0 on an empty hub, got %d", id)
	}
	a := d.events.Post()
	b := d.events.Post()
	if got := d.events.Get(); got != a {
		t.Fatalf("want FIFO order, got %d want %d", got, a)
	}
	if got := d.events.Get(); got != b {
		t.Fatalf("want FIFO order, got %d want %d", got, b)
	}
}

func TestEventHubWaitWakesOnPost(t *testing.T) {
	d := newDispatcher(t)

	done := make(chan int64, 1)
	go func() {
		done <- d.events.Wait(time.Second)
	}()
	time.Sleep(5 * time.Millisecond)
	posted := d.events.Post()

	select {
	case got := <-done:
		if got != posted {
			t.Fatalf("want event %d, got %d", posted, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not wake up after Post")
	}
}

func TestEventHubWaitTimesOut(t *testing.T) {
	d := newDispatcher(t)
	start := time.Now()
	if id := d.events.Wait(10 * time.Millisecond); id != 0 {
		t.Fatalf("want 0 on timeout, got %d", id)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("returned before the timeout elapsed: %v", elapsed)
	}
}

func TestDispatcherRejectsUnknownNative(t *testing.T) {
	d := newDispatcher(t)
	if _, err := d.InvokeNative("not/ChannelIO", "execute", entryDescr, make([]object.Word, 9)); err != common.ErrNoSuchMethod {
		t.Fatalf("want ErrNoSuchMethod, got %v", err)
	}
}

func TestDispatcherInvokeNativeCreateContext(t *testing.T) {
	d := newDispatcher(t)
	args := make([]object.Word, 9)
	args[0] = object.Word(common.GlobalCreateContext)

	out, err := d.InvokeNative(entryOwner, entryName, entryDescr, args)
	if err != nil {
		t.Fatalf("InvokeNative: %v", err)
	}
	if got := int32(uint32(out[0])); got <= 0 {
		t.Fatalf("want a positive context id, got %d", got)
	}
}
