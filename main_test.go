// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ffutop/langji-ac/internal/config"
	"github.com/ffutop/langji-ac/internal/simulator"
	rtuovertcp "github.com/ffutop/langji-ac/transport/rtu-over-tcp"
	"github.com/ffutop/langji-ac/transport/tcp"
)

func localConfig() *config.Config {
	return &config.Config{
		Device: config.DeviceConfig{Type: config.TypeLocal, UnitID: 1, Timeout: time.Second},
		Output: "text",
		Watch:  config.WatchConfig{Interval: time.Second},
	}
}

func TestRun_Reads(t *testing.T) {
	tests := []struct {
		args []string
		rf   rangeFlags
		want string
	}{
		{[]string{"sensors"}, rangeFlags{}, "0x0000(0),Internal temperature sensor 1, Value: 23.5\n"},
		{[]string{"sensors"}, rangeFlags{start: 0x06, quantity: 1}, "0x0006(6),Humidity level, Value: 55\n"},
		{[]string{"config"}, rangeFlags{start: 0x0A, quantity: 1}, "0x000A(10),Heating start threshold, Value: 50\n"},
		{[]string{"status"}, rangeFlags{start: 0x02, quantity: 1}, "0x0002(2),Reserved, Value: 1\n"},
		{[]string{"alarms"}, rangeFlags{}, "0x001F(31),High temperature alarm fault setting, Value: 0\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), localConfig(), tt.rf, tt.args, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output =\n%s\nwant line %q", out.String(), tt.want)
			}
		})
	}
}

func TestRun_StartKeepsDefaultQuantity(t *testing.T) {
	tests := []struct {
		command string
		start   uint16
		first   string
		lines   int
	}{
		{"status", 0x02, "0x0002(2),", 10},
		{"alarms", 0x01, "0x0001(1),", 32},
		{"sensors", 0x23, "0x0023(35),", 36},
		{"config", 0x02, "0x0002(2),", 21},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			var out bytes.Buffer
			rf := rangeFlags{start: tt.start}
			if err := run(context.Background(), localConfig(), rf, []string{tt.command}, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if len(lines) != tt.lines {
				t.Errorf("got %d lines, want %d", len(lines), tt.lines)
			}
			if !strings.HasPrefix(lines[0], tt.first) {
				t.Errorf("first line = %q, want prefix %q", lines[0], tt.first)
			}
		})
	}
}

func TestRun_Writes(t *testing.T) {
	tests := [][]string{
		{"set-coil", "0x0005", "on"},
		{"set-register", "8", "300"},
		{"set-registers", "0x0008", "300", "240"},
		{"power", "off"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			var out bytes.Buffer
			if err := run(context.Background(), localConfig(), rangeFlags{}, args, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if out.String() != "OK\n" {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestRun_Usage(t *testing.T) {
	tests := [][]string{
		{"reboot"},
		{"set-coil", "1"},
		{"set-coil", "1", "maybe"},
		{"set-register", "0x10000", "1"},
		{"set-registers", "8"},
		{"power"},
	}
	for _, args := range tests {
		if err := run(context.Background(), localConfig(), rangeFlags{}, args, &bytes.Buffer{}); err == nil {
			t.Errorf("run(%q) error = nil", args)
		}
	}
}

func TestRun_RTUOverTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	m := simulator.NewModel()
	simulator.SeedDefaults(m)
	device := simulator.NewDevice(3, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rtuovertcp.NewServer("").Serve(ctx, l, device.HandleFrame)

	cfg := localConfig()
	cfg.Device.Type = config.TypeRTUOverTCP
	cfg.Device.Host = "127.0.0.1"
	cfg.Device.Port = l.Addr().(*net.TCPAddr).Port
	cfg.Device.UnitID = 3
	cfg.Output = "json"

	var out bytes.Buffer
	if err := run(ctx, cfg, rangeFlags{quantity: 2}, []string{"sensors"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), `"value": -5`) {
		t.Errorf("output = %s", out.String())
	}

	if err := run(ctx, cfg, rangeFlags{}, []string{"set-register", "0x0009", "250"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("set-register error = %v", err)
	}
	if m.Register(0x09) != 250 {
		t.Errorf("register 9 = %d, want 250", m.Register(0x09))
	}
}

func TestRun_ModbusTCPGateway(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	m := simulator.NewModel()
	simulator.SeedDefaults(m)
	device := simulator.NewDevice(1, m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tcp.NewServer("").Serve(ctx, l, device.HandleFrame)

	cfg := localConfig()
	cfg.Device.Type = config.TypeTCP
	cfg.Device.Host = "127.0.0.1"
	cfg.Device.Port = l.Addr().(*net.TCPAddr).Port

	if err := run(ctx, cfg, rangeFlags{}, []string{"power", "off"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("power off error = %v", err)
	}
	if m.Register(0x23) != 0 {
		t.Errorf("switch register = %#04x, want 0", m.Register(0x23))
	}
}

func TestParseWord(t *testing.T) {
	tests := map[string]uint16{"0": 0, "35": 35, "0x23": 0x23, "0xFFFF": 0xFFFF}
	for in, want := range tests {
		got, err := parseWord(in)
		if err != nil || got != want {
			t.Errorf("parseWord(%q) = %d, %v, want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "-1", "65536", "abc"} {
		if _, err := parseWord(in); err == nil {
			t.Errorf("parseWord(%q) error = nil", in)
		}
	}
}
