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

// Package rlp is a small length-prefixed binary codec used to serialize
// suite-adjacent structures that are not part of the packed bytecode form
// itself. Its one user is isolate's hibernation blob (the isolate's
// statics and its threads' entry points). It plays the same role the
// teacher's rlp package plays for on-disk state: a single
// EncodeToBytes/DecodeBytes pair instead of hand-rolled framing.
package rlp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
)

// Kind identifies the shape of the next value in a stream, mirroring the
// teacher's s.Kind() used to sniff an encoded value's tag without fully
// decoding it.
type Kind int

const (
	KindByte Kind = iota
	KindString
	KindList
)

const (
	tagByte   = 0x00
	tagString = 0x01
	tagList   = 0x02
)

// EncodeToBytes encodes val and returns the result. Supported values are
// fixed-size integers, bool, []byte, string, slices/arrays of the above,
// and structs composed of them (struct fields are encoded positionally,
// in declaration order, with unexported fields skipped).
func EncodeToBytes(val interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the RLP-ish encoding of val to w.
func Encode(w io.Writer, val interface{}) error {
	return encodeValue(w, reflect.ValueOf(val))
}

func encodeValue(w io.Writer, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return encodeValue(w, reflect.ValueOf([]byte(nil)))
		}
		return encodeValue(w, v.Elem())
	case reflect.Bool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return writeString(w, []byte{b})
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.Uint())
		return writeString(w, trimLeadingZeros(b[:]))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int()))
		return writeString(w, b[:])
	case reflect.String:
		return writeString(w, []byte(v.String()))
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return writeString(w, v.Bytes())
		}
		var items bytes.Buffer
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(&items, v.Index(i)); err != nil {
				return err
			}
		}
		return writeList(w, items.Bytes())
	case reflect.Struct:
		var items bytes.Buffer
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).PkgPath != "" { // unexported
				continue
			}
			if err := encodeValue(&items, v.Field(i)); err != nil {
				return err
			}
		}
		return writeList(w, items.Bytes())
	case reflect.Invalid:
		return writeString(w, nil)
	default:
		return fmt.Errorf("rlp: unsupported kind %s", v.Kind())
	}
}

func writeString(w io.Writer, b []byte) error {
	if _, err := w.Write([]byte{tagString}); err != nil {
		return err
	}
	return writeLenAndBytes(w, b)
}

func writeList(w io.Writer, b []byte) error {
	if _, err := w.Write([]byte{tagList}); err != nil {
		return err
	}
	return writeLenAndBytes(w, b)
}

func writeLenAndBytes(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}

// DecodeBytes decodes the RLP-ish blob b into out, which must be a pointer.
func DecodeBytes(b []byte, out interface{}) error {
	s := NewStream(bytes.NewReader(b), uint64(len(b)))
	return s.Decode(out)
}

// Stream reads successive RLP-ish values from an underlying reader,
// mirroring the teacher's streaming decoder shape (NewStream(r, limit)).
type Stream struct {
	r     io.Reader
	limit uint64
}

// NewStream wraps r as a Stream. A limit of 0 means unbounded.
func NewStream(r io.Reader, limit uint64) *Stream {
	return &Stream{r: r, limit: limit}
}

// Kind reports the tag and payload length of the next value without
// consuming it beyond the 5-byte header, mirroring the teacher's
// ParseTypeByHead use of s.Kind() to classify an encoded account blob.
func (s *Stream) Kind() (Kind, uint64, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		return 0, 0, err
	}
	l := uint64(binary.BigEndian.Uint32(hdr[1:5]))
	switch hdr[0] {
	case tagString:
		return KindString, l, nil
	case tagList:
		return KindList, l, nil
	default:
		return KindByte, l, nil
	}
}

func (s *Stream) readValue() (tag byte, payload []byte, err error) {
	var hdr [5]byte
	if _, err = io.ReadFull(s.r, hdr[:]); err != nil {
		return 0, nil, err
	}
	l := binary.BigEndian.Uint32(hdr[1:5])
	payload = make([]byte, l)
	if l > 0 {
		if _, err = io.ReadFull(s.r, payload); err != nil {
			return 0, nil, err
		}
	}
	return hdr[0], payload, nil
}

// Decode reads one value off the stream into out, a pointer.
func (s *Stream) Decode(out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("rlp: Decode requires a non-nil pointer")
	}
	return s.decodeValue(rv.Elem())
}

func (s *Stream) decodeValue(v reflect.Value) error {
	tag, payload, err := s.readValue()
	if err != nil {
		return err
	}
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(len(payload) > 0 && payload[0] != 0)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(bytesToUint64(payload))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(bytesToUint64(payload)))
	case reflect.String:
		v.SetString(string(payload))
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			v.SetBytes(payload)
			return nil
		}
		return s.decodeList(v, tag, payload)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			reflect.Copy(v, reflect.ValueOf(payload))
			return nil
		}
		return s.decodeList(v, tag, payload)
	case reflect.Struct:
		return s.decodeStruct(v, tag, payload)
	default:
		return fmt.Errorf("rlp: unsupported decode kind %s", v.Kind())
	}
	return nil
}

func (s *Stream) decodeList(v reflect.Value, tag byte, payload []byte) error {
	if tag != tagList {
		return errors.New("rlp: expected list")
	}
	r := bytes.NewReader(payload)
	sub := NewStream(r, uint64(len(payload)))
	var elems []reflect.Value
	for r.Len() > 0 {
		elemType := v.Type().Elem()
		ev := reflect.New(elemType).Elem()
		if err := sub.decodeValue(ev); err != nil {
			return err
		}
		elems = append(elems, ev)
	}
	if v.Kind() == reflect.Slice {
		out := reflect.MakeSlice(v.Type(), len(elems), len(elems))
		for i, e := range elems {
			out.Index(i).Set(e)
		}
		v.Set(out)
	} else {
		for i, e := range elems {
			if i < v.Len() {
				v.Index(i).Set(e)
			}
		}
	}
	return nil
}

func (s *Stream) decodeStruct(v reflect.Value, tag byte, payload []byte) error {
	if tag != tagList {
		return errors.New("rlp: expected list for struct")
	}
	sub := NewStream(bytes.NewReader(payload), uint64(len(payload)))
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			continue
		}
		if err := sub.decodeValue(v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func bytesToUint64(b []byte) uint64 {
	var full [8]byte
	copy(full[8-len(b):], b)
	return binary.BigEndian.Uint64(full[:])
}
