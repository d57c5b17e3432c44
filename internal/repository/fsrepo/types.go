// Copyright (c) 2024 lf-edge
// SPDX-License-Identifier: Apache-2.0

package fsrepo

import "github.com/lf-edge/s16d/libs/unit"

// groupFile is the on-disk shape of a single dependency group declaration,
// embedded in both serviceFile and instanceFile.
type groupFile struct {
	Kind      string   `yaml:"kind"`
	RestartOn string   `yaml:"restart_on"`
	Targets   []string `yaml:"targets"`
}

// commandFile is the on-disk shape of one method slot.
type commandFile struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

func (c commandFile) toCommand() unit.Command {
	return unit.Command{Path: c.Path, Args: c.Args}
}

// methodsFile is the on-disk shape of an instance's method set.
type methodsFile struct {
	PreStart  commandFile `yaml:"prestart"`
	Start     commandFile `yaml:"start"`
	PostStart commandFile `yaml:"poststart"`
	Stop      commandFile `yaml:"stop"`
	PostStop  commandFile `yaml:"poststop"`
}

func (m methodsFile) toMethodSet() unit.MethodSet {
	var set unit.MethodSet
	set[unit.MPreStart] = m.PreStart.toCommand()
	set[unit.MStart] = m.Start.toCommand()
	set[unit.MPostStart] = m.PostStart.toCommand()
	set[unit.MStop] = m.Stop.toCommand()
	set[unit.MPostStop] = m.PostStop.toCommand()
	return set
}

// instanceFile is the on-disk shape of one declared instance.
type instanceFile struct {
	Name    string      `yaml:"name"`
	Type    string       `yaml:"type"`
	Methods methodsFile  `yaml:"methods"`
	Groups  []groupFile  `yaml:"groups"`
}

// serviceFile is the on-disk shape of services/<name>.yaml: a service's own
// dependency groups plus the instances it declares.
type serviceFile struct {
	Service   string         `yaml:"service"`
	Groups    []groupFile    `yaml:"groups"`
	Instances []instanceFile `yaml:"instances"`
}
