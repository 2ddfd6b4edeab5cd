package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrBadFrame        = errors.New("malformed frame")
)

// Frame types.
const (
	FrameHello    = "hello"
	FrameRequest  = "request"
	FrameResponse = "response"
	FrameError    = "error"
)

// ReceivedFrame is a decoded frame and the local time it arrived.
type ReceivedFrame struct {
	Frame
	ReceivedAt time.Time
}

// Frame is the envelope of every message on the channel.
type Frame struct {
	Type     string        `json:"type"`
	Session  string        `json:"session,omitempty"`
	Request  *WireRequest  `json:"request,omitempty"`
	Response *WireResponse `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// WireRequest is a model.Request on the wire. A null graticule means the
// Globalhash.
type WireRequest struct {
	ID         int64            `json:"id"`
	Flags      model.Flags      `json:"flags"`
	Date       model.Date       `json:"date"`
	Graticule  *model.Graticule `json:"graticule"`
	Globalhash bool             `json:"globalhash"`
}

// WireResponse is a model.Response on the wire.
type WireResponse struct {
	ID        int64            `json:"id"`
	Flags     model.Flags      `json:"flags"`
	Code      string           `json:"code"`
	Date      model.Date       `json:"date"`
	Graticule *model.Graticule `json:"graticule"`
	Info      *WireInfo        `json:"info,omitempty"`
	Nearby    []WireInfo       `json:"nearby,omitempty"`
}

// WireInfo is a model.Info on the wire.
type WireInfo struct {
	Graticule  *model.Graticule `json:"graticule"`
	Globalhash bool             `json:"globalhash"`
	Date       model.Date       `json:"date"`
	StockDate  model.Date       `json:"stock_date"`
	Value      decimal.Decimal  `json:"value"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
	Retro      bool             `json:"retro"`
}

// EncodeRequest converts a request for the wire.
func EncodeRequest(req model.Request) *WireRequest {
	return &WireRequest{
		ID:         req.ID,
		Flags:      req.Flags,
		Date:       req.Date,
		Graticule:  req.Graticule,
		Globalhash: req.IsGlobalhash(),
	}
}

// Decode validates a wire request and converts it back.
func (w *WireRequest) Decode() (model.Request, error) {
	if w.Date.IsZero() {
		return model.Request{}, fmt.Errorf("%w: missing date", ErrBadFrame)
	}
	if w.Globalhash == (w.Graticule != nil) {
		return model.Request{}, fmt.Errorf("%w: need exactly one of graticule and globalhash", ErrBadFrame)
	}
	req := model.NewRequest(w.Graticule, w.Date, w.Flags)
	if w.ID != 0 {
		req.ID = w.ID
	}
	return req, nil
}

// EncodeResponse converts a response for the wire.
func EncodeResponse(resp model.Response) *WireResponse {
	w := &WireResponse{
		ID:        resp.RequestID,
		Flags:     resp.Flags,
		Code:      resp.Code.String(),
		Date:      resp.Date,
		Graticule: resp.Graticule,
	}
	if resp.Info != nil {
		info := encodeInfo(*resp.Info)
		w.Info = &info
	}
	for _, n := range resp.Nearby {
		w.Nearby = append(w.Nearby, encodeInfo(n))
	}
	return w
}

// Decode converts a wire response back. Unknown codes become network errors.
func (w *WireResponse) Decode() (model.Response, error) {
	resp := model.Response{
		RequestID: w.ID,
		Flags:     w.Flags,
		Code:      parseCode(w.Code),
		Date:      w.Date,
		Graticule: w.Graticule,
	}
	if w.Info != nil {
		info, err := w.Info.decode()
		if err != nil {
			return model.Response{}, err
		}
		resp.Info = &info
	}
	for _, n := range w.Nearby {
		info, err := n.decode()
		if err != nil {
			return model.Response{}, err
		}
		resp.Nearby = append(resp.Nearby, info)
	}
	return resp, nil
}

func encodeInfo(info model.Info) WireInfo {
	p := info.Params()
	return WireInfo{
		Graticule:  p.Graticule,
		Globalhash: p.Globalhash,
		Date:       p.Date,
		StockDate:  p.StockDate,
		Value:      p.Value,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Retro:      p.Retro,
	}
}

// decode rejects infos that would make model.NewInfo panic.
func (w WireInfo) decode() (model.Info, error) {
	if w.Globalhash == (w.Graticule != nil) {
		return model.Info{}, fmt.Errorf("%w: info needs exactly one of graticule and globalhash", ErrBadFrame)
	}
	return model.NewInfo(model.InfoParams{
		Graticule:  w.Graticule,
		Globalhash: w.Globalhash,
		Date:       w.Date,
		StockDate:  w.StockDate,
		Value:      w.Value,
		Latitude:   w.Latitude,
		Longitude:  w.Longitude,
		Retro:      w.Retro,
	}), nil
}

func parseCode(s string) model.ResponseCode {
	for _, c := range []model.ResponseCode{
		model.ResponseOK,
		model.ResponseNotYetPosted,
		model.ResponseNoConnection,
		model.ResponseNetworkError,
	} {
		if c.String() == s {
			return c
		}
	}
	return model.ResponseNetworkError
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL              string        // e.g. ws://localhost:8080/ws
	UserAgent        string        // optional
	HandshakeTimeout time.Duration // dial plus hello frame
	PingTimeout      time.Duration // silence allowed before the connection counts as stale
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	BufferSize       int // received frames queued for the reader
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ServerConfig configures the WebSocket server.
type ServerConfig struct {
	Path           string        // Upgrade path (default: /ws)
	WriteTimeout   time.Duration // Write deadline per frame
	PingInterval   time.Duration // Server ping period
	PongTimeout    time.Duration // Read deadline extension on each pong
	MaxMessageSize int64         // Largest accepted frame in bytes
	SendBuffer     int           // Outgoing frames queued per session
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Path:           "/ws",
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 64 << 10,
		SendBuffer:     64,
	}
}
