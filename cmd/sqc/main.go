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

// sqc is the ahead-of-time translator host tool: it drives the same
// classfile/ir/emit pipeline squawk uses at launch, but offline, against a
// directory of .class files, and reports the resulting suite's shape
// instead of running it. Binary suite-image serialization (the wire format
// a split deployment would load over a SuiteFileMagic-framed connection)
// isn't implemented -- see DESIGN.md for why this pass stops at
// translate-and-report.
package main

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/urfave/cli.v1"

	"github.com/squawkvm/squawk/cmd/utils"
	"github.com/squawkvm/squawk/suite"
)

var (
	classpathFlag = cli.StringFlag{
		Name:  "classpath",
		Usage: "directory of .class files to translate",
	}
	suiteNameFlag = cli.StringFlag{
		Name:  "suitename",
		Value: "app",
		Usage: "name the translated suite is registered under",
	}
	parentFlag = cli.StringSliceFlag{
		Name:  "parent",
		Usage: "name of a parent suite to resolve inherited classes against (repeatable)",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "v",
		Usage: "list every translated class and its method/field counts",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "sqc"
	app.Usage = "translate a directory of .class files into a suite and report its shape"
	app.Flags = []cli.Flag{classpathFlag, suiteNameFlag, parentFlag, verboseFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	classpath := ctx.String(classpathFlag.Name)
	if classpath == "" {
		return cli.NewExitError("--classpath is required", 1)
	}

	reg := suite.NewRegistry(1<<16, 4)
	parents := ctx.StringSlice(parentFlag.Name)

	su, err := utils.TranslateDir(reg, 1, ctx.String(suiteNameFlag.Name), parents, classpath)
	if err != nil {
		return fmt.Errorf("translating %s: %w", classpath, err)
	}

	fmt.Printf("suite %q: %d classes, checksum %08x\n", su.Name(), su.ClassCount(), su.Checksum())
	if !ctx.Bool(verboseFlag.Name) {
		return nil
	}

	var names []string
	su.Each(func(k *suite.Klass) { names = append(names, k.Name()) })
	sort.Strings(names)
	for _, name := range names {
		k, ok := su.LookupByName(name)
		if !ok {
			continue
		}
		fmt.Printf("  %s  virtual=%d static=%d fields=%d instanceWords=%d\n",
			k.Name(), len(k.VirtualMethods()), len(k.StaticMethods()),
			len(k.Metadata().FieldNames), k.InstanceWords())
	}
	return nil
}
