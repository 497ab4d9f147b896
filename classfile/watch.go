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
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/rjeczalik/notify"
)

// ClasspathWatcher watches a directory for newly written or modified
// .class files and feeds them to a Loader, enabling incremental,
// self-hosted translation: drop a class file into the watched classpath
// and it is translated on the spot, rather than only at VM boot (spec
// §4.D "(NEW) fs watch for self-hosted translation").
type ClasspathWatcher struct {
	loader *Loader
	events chan notify.EventInfo
	stop   chan struct{}
}

// Watch starts watching dir (non-recursively; callers wanting nested
// packages should pass dir+"/...") and dispatches every create/write
// event for a .class file to loader.LoadBytes.
func Watch(loader *Loader, dir string) (*ClasspathWatcher, error) {
	events := make(chan notify.EventInfo, 32)
	if err := notify.Watch(dir, events, notify.Create, notify.Write); err != nil {
		return nil, err
	}
	w := &ClasspathWatcher{loader: loader, events: events, stop: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *ClasspathWatcher) loop() {
	for {
		select {
		case ev := <-w.events:
			if strings.HasSuffix(ev.Path(), ".class") {
				w.handle(ev.Path())
			}
		case <-w.stop:
			notify.Stop(w.events)
			return
		}
	}
}

func (w *ClasspathWatcher) handle(path string) {
	data, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		log_.Warn("classpath watch: failed to read changed file", "path", path, "err", err)
		return
	}
	if _, _, err := w.loader.LoadBytes(data); err != nil {
		log_.Warn("classpath watch: failed to load changed class", "path", path, "err", err)
	} else {
		log_.Info("classpath watch: loaded class", "path", path)
	}
}

// Close stops watching.
func (w *ClasspathWatcher) Close() {
	close(w.stop)
}
