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

// squawk is the VM launcher: it translates a directory of .class files into
// a Suite, starts it as the bootstrap isolate, and wires up the optional
// split I/O server and monitor HTTP/websocket endpoint around it.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/naoina/toml"
	"github.com/status-im/keycard-go/hexutils"
	"gopkg.in/urfave/cli.v1"

	"github.com/squawkvm/squawk/channel"
	"github.com/squawkvm/squawk/cmd/utils"
	"github.com/squawkvm/squawk/interp"
	"github.com/squawkvm/squawk/isolate"
	"github.com/squawkvm/squawk/log"
	"github.com/squawkvm/squawk/metrics"
	"github.com/squawkvm/squawk/monitor"
	"github.com/squawkvm/squawk/object"
	"github.com/squawkvm/squawk/suite"
	"github.com/squawkvm/squawk/suitedb"
)

// launchConfig is the TOML-loadable subset of squawk's settings, mirroring
// the teacher's gprobeConfig/loadConfig split: flags always win over a
// config file's values, and a config file is entirely optional. Field
// names match the CLI surface SPEC_FULL.md §1 names: -Xmx, -Xboot,
// -Xioport, -suite, -cp, -verbose, -Xtgc.
type launchConfig struct {
	Classpath   string
	BootClasspath string
	MainClass   string
	SuiteName   string
	HeapWords   int
	HTTP        string
	IOPort      string
	HibernateDB string
	Verbose     bool
	TraceGC     bool
}

func loadConfig(file string, cfg *launchConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewDecoder(bufio.NewReader(f)).Decode(cfg)
}

var (
	classpathFlag = cli.StringFlag{
		Name:  "classpath, cp",
		Usage: "directory of .class files making up the bootstrap suite",
	}
	bootClasspathFlag = cli.StringFlag{
		Name:  "Xboot",
		Usage: "directory of .class files translated first, as a parent suite (disabled if empty)",
	}
	mainClassFlag = cli.StringFlag{
		Name:  "main",
		Usage: "fully qualified main class to run",
	}
	suiteNameFlag = cli.StringFlag{
		Name:  "suitename, suite",
		Value: "app",
		Usage: "name the translated suite is registered under",
	}
	heapFlag = cli.IntFlag{
		Name:  "heapwords, Xmx",
		Value: 1 << 20,
		Usage: "heap size in object.Word units",
	}
	httpFlag = cli.StringFlag{
		Name:  "http",
		Usage: "monitor HTTP/websocket listen address (disabled if empty)",
	}
	ioportFlag = cli.StringFlag{
		Name:  "ioport, Xioport",
		Usage: "split-mode channel I/O TCP listen address (disabled if empty)",
	}
	hibernateDBFlag = cli.StringFlag{
		Name:  "hibernatedb",
		Usage: "LevelDB directory backing Isolate.Hibernate/Unhibernate (disabled if empty)",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "report host RSS on allocation failure and hex-dump translated bytecode",
	}
	traceGCFlag = cli.BoolFlag{
		Name:  "Xtgc",
		Usage: "periodically log simulated heap occupancy",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (flags override its values)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "squawk"
	app.Usage = "run a translated suite as the bootstrap isolate"
	app.Flags = []cli.Flag{
		classpathFlag, bootClasspathFlag, mainClassFlag, suiteNameFlag, heapFlag,
		httpFlag, ioportFlag, hibernateDBFlag, verboseFlag, traceGCFlag, configFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// monitorStatsAdapter satisfies isolate.MonitorStats against the package
// metrics counters, the same counters the teacher's own subsystems report
// through.
type monitorStatsAdapter struct{}

func (monitorStatsAdapter) IncExitCount()    { metrics.MonitorExitCount.Inc(1) }
func (monitorStatsAdapter) IncReleaseCount() { metrics.MonitorReleaseCount.Inc(1) }

func run(ctx *cli.Context) error {
	cfg := launchConfig{SuiteName: "app", HeapWords: 1 << 20}
	if file := ctx.String(configFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}
	if ctx.IsSet(classpathFlag.Name) || cfg.Classpath == "" {
		cfg.Classpath = ctx.String(classpathFlag.Name)
	}
	if ctx.IsSet(bootClasspathFlag.Name) || cfg.BootClasspath == "" {
		cfg.BootClasspath = ctx.String(bootClasspathFlag.Name)
	}
	if ctx.IsSet(mainClassFlag.Name) || cfg.MainClass == "" {
		cfg.MainClass = ctx.String(mainClassFlag.Name)
	}
	if ctx.IsSet(suiteNameFlag.Name) {
		cfg.SuiteName = ctx.String(suiteNameFlag.Name)
	}
	if ctx.IsSet(heapFlag.Name) {
		cfg.HeapWords = ctx.Int(heapFlag.Name)
	}
	if ctx.IsSet(httpFlag.Name) || cfg.HTTP == "" {
		cfg.HTTP = ctx.String(httpFlag.Name)
	}
	if ctx.IsSet(ioportFlag.Name) || cfg.IOPort == "" {
		cfg.IOPort = ctx.String(ioportFlag.Name)
	}
	if ctx.IsSet(hibernateDBFlag.Name) || cfg.HibernateDB == "" {
		cfg.HibernateDB = ctx.String(hibernateDBFlag.Name)
	}
	if ctx.IsSet(verboseFlag.Name) {
		cfg.Verbose = ctx.Bool(verboseFlag.Name)
	}
	if ctx.IsSet(traceGCFlag.Name) {
		cfg.TraceGC = ctx.Bool(traceGCFlag.Name)
	}

	if cfg.Classpath == "" || cfg.MainClass == "" {
		return cli.NewExitError("both --classpath/-cp and --main are required", 1)
	}

	reg := suite.NewRegistry(1<<20, 4)

	var parents []string
	if cfg.BootClasspath != "" {
		boot, err := utils.TranslateDir(reg, 1, "boot", nil, cfg.BootClasspath)
		if err != nil {
			return fmt.Errorf("translating -Xboot %s: %w", cfg.BootClasspath, err)
		}
		log.Info("translated boot suite", "name", boot.Name(), "classes", boot.ClassCount())
		parents = []string{boot.Name()}
	}

	su, err := utils.TranslateDir(reg, 2, cfg.SuiteName, parents, cfg.Classpath)
	if err != nil {
		return fmt.Errorf("translating %s: %w", cfg.Classpath, err)
	}
	log.Info("translated suite", "name", su.Name(), "classes", su.ClassCount())
	if cfg.Verbose {
		dumpSuiteBytecode(su)
	}

	heap, _ := interp.NewTypedHeap(cfg.HeapWords, nil, reg)
	alloc := interp.NewAllocator(heap, cfg.HeapWords, cfg.Verbose)

	if cfg.TraceGC {
		go traceOccupancy(alloc)
	}

	dispatch := channel.NewDispatcher(alloc)
	dispatch.Table().Create()

	sched := isolate.NewScheduler(reg, alloc, monitorStatsAdapter{}, dispatch)
	defer sched.Close()

	var ioserver *channel.IOServer
	if cfg.IOPort != "" {
		ioserver, err = channel.NewIOServer(dispatch, cfg.IOPort)
		if err != nil {
			return fmt.Errorf("starting split I/O server: %w", err)
		}
		ioserver.Start()
		defer ioserver.Stop()
	}

	var hibernateDB suitedb.KeyValueStore
	if dir := cfg.HibernateDB; dir != "" {
		hibernateDB, err = suitedb.OpenLevelDB(dir, 16, 16)
		if err != nil {
			return fmt.Errorf("opening hibernate database: %w", err)
		}
		defer hibernateDB.(*suitedb.LevelDB).Close()
	}
	_ = hibernateDB // reserved for a future unhibernate-on-boot flag; see DESIGN.md

	k, m, ok := resolveMain(reg, su, cfg.MainClass)
	if !ok {
		return fmt.Errorf("no static void main(String[]) found on %s", cfg.MainClass)
	}

	iso := sched.NewIsolate(su.Name()+":"+cfg.MainClass, cfg.MainClass, ctx.Args())
	args, err := mainArgs(reg, su, alloc)
	if err != nil {
		log.Warn("could not build argv array, starting with no arguments", "err", err)
		args = nil
	}
	th, err := iso.Start(k, m, args)
	if err != nil {
		return fmt.Errorf("starting bootstrap isolate: %w", err)
	}

	if addr := cfg.HTTP; addr != "" {
		mon := monitor.NewServer(sched, dispatch, addr)
		if err := mon.Start(time.Second); err != nil {
			return fmt.Errorf("starting monitor server: %w", err)
		}
		defer mon.Stop()
		log.Info("monitor listening", "addr", addr)
	}

	_, err = th.Join()
	return err
}

// resolveMain looks up className in su and returns its first static method
// named main whose signature ends in ")V", the same entry point every CLDC suite's
// bootstrap isolate is dispatched through.
func resolveMain(reg *suite.Registry, su *suite.Suite, className string) (*suite.Klass, *suite.Method, bool) {
	k, ok := reg.Resolve(su, strings.ReplaceAll(className, ".", "/"))
	if !ok {
		return nil, nil, false
	}
	for _, m := range k.StaticMethods() {
		if m.Name == "main" && strings.HasSuffix(m.Signature, ")V") {
			return k, m, true
		}
	}
	return nil, nil, false
}

// mainArgs builds the empty java.lang.String[] argv most CLDC main methods
// expect, allocated straight onto the shared heap. If java/lang/String
// isn't resolvable in this suite (a minimal classpath with no bootstrap
// classes translated in), the caller falls back to no arguments rather
// than failing the whole launch.
func mainArgs(reg *suite.Registry, su *suite.Suite, alloc *interp.Allocator) ([]object.Word, error) {
	k, ok := reg.Resolve(su, "java/lang/String")
	if !ok {
		return nil, fmt.Errorf("java/lang/String not found in registry")
	}
	vm := interp.NewVM(reg, alloc, isolate.NewMonitors(monitorStatsAdapter{}), nil)
	arr, err := vm.NewArray(k, 0)
	if err != nil {
		return nil, err
	}
	return []object.Word{object.Word(uint32(arr))}, nil
}

// dumpSuiteBytecode hex-dumps every translated method's bytecode to the log
// under -verbose, the same role hexutils plays in the teacher's key tooling
// (SPEC_FULL.md §6 "Hex dump helper") applied here to bytecode/constant-pool
// dumps instead of smart-card APDUs.
func dumpSuiteBytecode(su *suite.Suite) {
	var names []string
	su.Each(func(k *suite.Klass) { names = append(names, k.Name()) })
	sort.Strings(names)
	for _, name := range names {
		k, ok := su.LookupByName(name)
		if !ok {
			continue
		}
		for _, m := range append(append([]*suite.Method{}, k.VirtualMethods()...), k.StaticMethods()...) {
			if len(m.Bytecode) == 0 {
				continue
			}
			log.Info("translated method", "class", name, "method", m.Name+m.Signature,
				"bytecode", hexutils.BytesToHex(m.Bytecode))
		}
	}
}

// traceOccupancy is -Xtgc's periodic "trace garbage collection" stand-in:
// this core has no real collector, so it logs the simulated heap occupancy
// at a fixed interval instead of on each collection cycle.
func traceOccupancy(alloc *interp.Allocator) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		log.Info("heap occupancy", "fraction", alloc.Occupancy())
	}
}
