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

// Package channel implements the wire-opcode I/O protocol of spec §4.I: a
// global table of per-isolate contexts, each owning a set of channels
// (stdio, GUI-in/out, and on-demand generic/file streams), plus the event
// queue a blocked green thread parks on. Grounded on the teacher's
// `probe/handler_probe.go` Handle method -- a single entry point
// switching on an inbound message's type and routing to a per-kind
// handler -- applied here to the channel opcode groups of common/
// wireopcodes.go instead of wire protocol messages.
package channel

import (
	"sync"

	"github.com/squawkvm/squawk/common"
)

// Context is spec §3's Channel container scoped to one isolate: a map of
// channel id to Channel, plus the two-word result register and the
// pending-exception byte cursor CONTEXT_GETRESULT/CONTEXT_GETRESULT_2/
// CONTEXT_GETERROR read back.
type Context struct {
	ID int32

	mu          sync.Mutex
	channels    map[int32]*Channel
	nextChannel int32

	resultLo, resultHi uint32
	errName            []byte
	errCursor          int
}

func newContext(id int32) *Context {
	return &Context{ID: id, channels: make(map[int32]*Channel), nextChannel: common.ChannelGenericFirst}
}

// setResult records a successful operation's up-to-64-bit result, split
// across the two words CONTEXT_GETRESULT/CONTEXT_GETRESULT_2 fetch.
func (c *Context) setResult(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resultLo = uint32(v)
	c.resultHi = uint32(v >> 32)
}

// setError records a native exception's class name, readable one byte at
// a time via CONTEXT_GETERROR until it yields zero (spec §4.I).
func (c *Context) setError(className string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errName = append([]byte(className), 0)
	c.errCursor = 0
}

func (c *Context) getResult() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(c.resultLo)
}

func (c *Context) getResult2() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(c.resultHi)
}

func (c *Context) getError() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errCursor >= len(c.errName) {
		return 0
	}
	b := c.errName[c.errCursor]
	c.errCursor++
	return int32(b)
}

// addChannel installs ch under the context's generic id space, or at a
// caller-supplied reserved id (stdio/GUI-in/GUI-out).
func (c *Context) addChannel(ch *Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch.ID == 0 {
		ch.ID = c.nextChannel
		c.nextChannel++
	}
	c.channels[ch.ID] = ch
}

func (c *Context) channel(id int32) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	return ch, ok
}

// reservedByType returns the context's channel of the given reserved type,
// lazily opening its backing resource on first request (spec §3: every
// isolate starts with a stdio, GUI-in and GUI-out channel implicitly --
// CONTEXT_GETCHANNEL is how native code first learns their ids).
func (c *Context) reservedByType(t common.ChannelType, open func() (resource, error), id int32) (*Channel, error) {
	c.mu.Lock()
	if ch, ok := c.channels[id]; ok {
		c.mu.Unlock()
		return ch, nil
	}
	c.mu.Unlock()

	res, err := open()
	if err != nil {
		return nil, err
	}
	ch := &Channel{ID: id, Type: t, res: res}
	c.addChannel(ch)
	return ch, nil
}

func (c *Context) freeChannel(id int32) {
	c.mu.Lock()
	ch, ok := c.channels[id]
	delete(c.channels, id)
	c.mu.Unlock()
	if ok {
		ch.close()
	}
}

func (c *Context) closeAll() {
	c.mu.Lock()
	chs := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		chs = append(chs, ch)
	}
	c.channels = make(map[int32]*Channel)
	c.mu.Unlock()
	for _, ch := range chs {
		ch.close()
	}
}

// ChannelIDs returns a snapshot of every channel id the context currently
// owns, for the monitor package's introspection endpoint.
func (c *Context) ChannelIDs() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int32, 0, len(c.channels))
	for id := range c.channels {
		ids = append(ids, id)
	}
	return ids
}

// Table is the global table of per-isolate contexts (spec §4.I
// "Organization"). One Table is shared by every isolate a VM process
// runs; Dispatcher holds the single instance.
type Table struct {
	mu       sync.Mutex
	next     int32
	contexts map[int32]*Context
}

// NewTable builds an empty context table.
func NewTable() *Table {
	return &Table{next: 1, contexts: make(map[int32]*Context)}
}

// Create allocates and registers a fresh context (GLOBAL_CREATECONTEXT).
func (t *Table) Create() *Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	ctx := newContext(id)
	t.contexts[id] = ctx
	return ctx
}

// Delete closes every channel the context still owns and drops it from
// the table (GLOBAL_DELETECONTEXT).
func (t *Table) Delete(id int32) bool {
	t.mu.Lock()
	ctx, ok := t.contexts[id]
	delete(t.contexts, id)
	t.mu.Unlock()
	if ok {
		ctx.closeAll()
	}
	return ok
}

// Get looks up a context by id.
func (t *Table) Get(id int32) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.contexts[id]
	return ctx, ok
}

// Contexts returns a snapshot of every live context id, for the monitor
// package's introspection endpoint.
func (t *Table) Contexts() []int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int32, 0, len(t.contexts))
	for id := range t.contexts {
		ids = append(ids, id)
	}
	return ids
}
