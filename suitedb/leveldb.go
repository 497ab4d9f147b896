// Copyright 2020 The go-probeum Authors
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

package suitedb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/squawkvm/squawk/log"
)

// LevelDB is a goleveldb-backed Database, used to persist finalized suites
// between VM invocations so translation need not re-run for an unchanged
// suite image (spec §9 "Suite persistence").
type LevelDB struct {
	db  *leveldb.DB
	log log.Logger
}

// OpenLevelDB opens (or creates) a goleveldb database at path, with a
// bloom filter enabled on every table -- the same configuration the
// teacher applies to its chain database, since both workloads are
// dominated by point lookups of immutable, content-addressed records.
func OpenLevelDB(path string, cacheMB, handles int) (*LevelDB, error) {
	if cacheMB < 16 {
		cacheMB = 16
	}
	if handles < 16 {
		handles = 16
	}
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cacheMB / 2 * opt.MiB,
		WriteBuffer:            cacheMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db, log: log.New("component", "suitedb")}, nil
}

func (d *LevelDB) Has(key []byte) (bool, error) { return d.db.Has(key, nil) }

func (d *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *LevelDB) Put(key []byte, value []byte) error { return d.db.Put(key, value, nil) }

func (d *LevelDB) Delete(key []byte) error { return d.db.Delete(key, nil) }

func (d *LevelDB) NewBatch() Batch { return &levelDBBatch{db: d.db} }

func (d *LevelDB) NewIterator(prefix []byte, start []byte) Iterator {
	return &levelDBIterator{iter: d.db.NewIterator(bytesPrefixRange(prefix, start), nil)}
}

func (d *LevelDB) Close() error {
	d.log.Info("closing suite database")
	return d.db.Close()
}

func bytesPrefixRange(prefix, start []byte) *util.Range {
	r := util.BytesPrefix(prefix)
	r.Start = append(r.Start, start...)
	return r
}

type levelDBBatch struct {
	db   *leveldb.DB
	b    leveldb.Batch
	size int
}

func (b *levelDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelDBBatch) ValueSize() int { return b.size }

func (b *levelDBBatch) Write() error { return b.db.Write(&b.b, nil) }

func (b *levelDBBatch) Reset() { b.b.Reset(); b.size = 0 }

type levelDBIterator struct {
	iter iterator.Iterator
}

func (it *levelDBIterator) Next() bool     { return it.iter.Next() }
func (it *levelDBIterator) Error() error   { return it.iter.Error() }
func (it *levelDBIterator) Key() []byte    { return it.iter.Key() }
func (it *levelDBIterator) Value() []byte  { return it.iter.Value() }
func (it *levelDBIterator) Release()       { it.iter.Release() }
