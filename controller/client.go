// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package controller is a client for Langji air-conditioner controllers.
//
// The controller speaks Modbus RTU: every request is a unit id, a function
// code, a payload and a CRC16 trailer. On site the RS485 line is bridged to
// Ethernet and the RTU frames travel unchanged as the whole TCP payload, so
// the default transport opens one TCP connection per request.
//
// Reads return a RegisterValueSet with raw words already converted to
// physical units (degrees Celsius, percent relative humidity, volts, baud).
// Writes confirm success by comparing the device's echo with the request.
package controller

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ffutop/langji-ac/modbus/rtu"
	"github.com/ffutop/langji-ac/transport"
	rtuovertcp "github.com/ffutop/langji-ac/transport/rtu-over-tcp"
)

const (
	DefaultUnitID  = 1
	DefaultTimeout = 5 * time.Second
)

// Endpoint identifies one controller.
type Endpoint struct {
	Host    string
	Port    int
	UnitID  byte
	Timeout time.Duration
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Client talks to a single controller. It holds no connection state of its
// own; each operation is exactly one request/response round trip.
type Client struct {
	endpoint  Endpoint
	transport transport.Transporter
}

// New creates a Client that reaches the controller over RTU-over-TCP.
func New(endpoint Endpoint) *Client {
	if endpoint.Timeout <= 0 {
		endpoint.Timeout = DefaultTimeout
	}
	tr := rtuovertcp.NewClient(endpoint.Address())
	tr.Timeout = endpoint.Timeout
	return NewWithTransport(endpoint, tr)
}

// NewWithTransport creates a Client that sends its frames through tr.
// Host, Port and Timeout of endpoint are informational in that case.
func NewWithTransport(endpoint Endpoint, tr transport.Transporter) *Client {
	return &Client{
		endpoint:  endpoint,
		transport: tr,
	}
}

// Endpoint returns the endpoint the client was created with.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// sendRequest frames payload, performs the round trip and returns the
// validated response frame, header and CRC included.
func (c *Client) sendRequest(ctx context.Context, functionCode byte, payload []byte) ([]byte, error) {
	request, err := rtu.BuildRequest(c.endpoint.UnitID, functionCode, payload)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(ctx, request)
}

func (c *Client) roundTrip(ctx context.Context, request []byte) ([]byte, error) {
	raw, err := c.transport.Send(ctx, request)
	if err != nil {
		return nil, err
	}
	return rtu.ValidateResponseFrom(c.endpoint.UnitID, raw)
}
