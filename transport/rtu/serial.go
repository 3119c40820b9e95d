// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	serialTimeout     = 5 * time.Second
	serialIdleTimeout = 60 * time.Second
)

// serialPort keeps an RS485 line open between requests and closes it after
// IdleTimeout without traffic.
type serialPort struct {
	serial.Config

	IdleTimeout time.Duration

	mu           sync.Mutex
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

// connect opens the port if it is not open. Caller must hold the mutex.
func (sp *serialPort) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sp.port == nil {
		port, err := serial.Open(&sp.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", sp.Config.Address, err)
		}
		sp.port = port
	}
	return nil
}

// Close closes the port. A later Send reopens it.
func (sp *serialPort) Close() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.close()
}

// close closes the port if it is open. Caller must hold the mutex.
func (sp *serialPort) close() (err error) {
	if sp.closeTimer != nil {
		sp.closeTimer.Stop()
	}
	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}

func (sp *serialPort) touch() {
	sp.lastActivity = time.Now()
	if sp.IdleTimeout <= 0 {
		return
	}
	if sp.closeTimer == nil {
		sp.closeTimer = time.AfterFunc(sp.IdleTimeout, sp.closeIdle)
	} else {
		sp.closeTimer.Reset(sp.IdleTimeout)
	}
}

func (sp *serialPort) closeIdle() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.IdleTimeout <= 0 || sp.port == nil {
		return
	}
	if idle := time.Since(sp.lastActivity); idle >= sp.IdleTimeout {
		slog.Debug("closing serial port due to idle timeout", "port", sp.Address, "idle", idle)
		sp.close()
	}
}
