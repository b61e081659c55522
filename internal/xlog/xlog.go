// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xlog provides one structured logrus entry per subsystem, the
// library equivalent of the teacher's print/throw logging in mgc.go and
// mbarrier.go, upgraded to a real logger since this is library code
// rather than the runtime itself.
package xlog

import "github.com/sirupsen/logrus"

var base = logrus.New()

// Collector is the logger used by the collector's cycle loop.
var Collector = base.WithField("subsystem", "collector")

// Session is the logger used by the mutator-collector channel.
var Session = base.WithField("subsystem", "session")

// Epoch is the logger used by the epoch-pinned bump allocator.
var Epoch = base.WithField("subsystem", "epoch")

// SetLevel adjusts the verbosity of every subsystem logger at once; used
// by cmd/gcbench to wire a --verbose flag.
func SetLevel(level logrus.Level) { base.SetLevel(level) }
