// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

// State is the lifecycle position of a Manager.
type State int

const (
	Uninstalled State = iota
	Installing
	Installed
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Active:
		return "active"
	}
	return "unknown"
}

// Names are the partition names a Manager uses.
type Names struct {
	Temp     string `yaml:"temp" json:"temp"`
	Content  string `yaml:"content" json:"content"`
	Manifest string `yaml:"manifest" json:"manifest"`
}

// DefaultNames returns the stock partition names.
func DefaultNames() Names {
	return Names{
		Temp:     "shellcache-temp",
		Content:  "shellcache-content",
		Manifest: "shellcache-manifest",
	}
}

// All returns the names in content, temp, manifest order.
func (n Names) All() []string {
	return []string{n.Content, n.Temp, n.Manifest}
}

// Host is what a Manager asks of whatever runs it.
type Host interface {
	// SkipWaiting makes this manager eligible to activate without waiting
	// for the previous version's clients to go away.
	SkipWaiting()
	// ClaimClients routes all open clients through this manager now.
	ClaimClients()
}

type nopHost struct{}

func (nopHost) SkipWaiting()  {}
func (nopHost) ClaimClients() {}
