package smartconnect

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamURI         = "wss://smartapisocket.angelone.in/smart-stream"
	heartbeatMessage  = "ping"
	heartbeatInterval = 10 * time.Second
)

// Subscription modes and exchange types for the smart-stream feed.
const (
	ModeLTP       = 1
	ModeQuote     = 2
	ModeSnapQuote = 3

	ExchangeNSECM = 1
	ExchangeNSEFO = 2
)

// StreamTick is one parsed tick from the binary feed. Prices are in
// paise as the wire sends them.
type StreamTick struct {
	Token        string
	ExchangeType int
	Mode         int
	LTP          int64
	Volume       int64 // cumulative day volume, quote modes only
	AvgPrice     int64
	OpenInterest int64 // snap-quote mode only
	ExchangeTS   time.Time
}

// TokenListEntry groups tokens by exchange for subscribe requests.
type TokenListEntry struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

// Stream is a client for the Angel One smart-stream websocket feed.
// It handles heartbeat, reconnect with backoff, and resubscribe.
type Stream struct {
	authToken  string
	apiKey     string
	clientCode string
	feedToken  string

	conn   *websocket.Conn
	dialer *websocket.Dialer

	mu            sync.Mutex
	subscriptions map[int][]TokenListEntry // mode -> token lists

	maxRetries int
	retryDelay time.Duration

	// OnTick receives every parsed data tick. Called from the read
	// goroutine; must not block.
	OnTick func(tick StreamTick)
	// OnError is called when the connection is lost for good.
	OnError func(err error)
	// OnReconnect is called after a successful reconnect.
	OnReconnect func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStream creates a feed client. All four tokens are required.
func NewStream(authToken, apiKey, clientCode, feedToken string) (*Stream, error) {
	if authToken == "" || apiKey == "" || clientCode == "" || feedToken == "" {
		return nil, errors.New("smartconnect: stream requires auth, api key, client code, and feed token")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		authToken:     authToken,
		apiKey:        apiKey,
		clientCode:    clientCode,
		feedToken:     feedToken,
		dialer:        websocket.DefaultDialer,
		subscriptions: make(map[int][]TokenListEntry),
		maxRetries:    5,
		retryDelay:    2 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Connect dials the feed and starts the read and heartbeat loops.
func (s *Stream) Connect() error {
	header := http.Header{}
	header.Add("Authorization", s.authToken)
	header.Add("x-api-key", s.apiKey)
	header.Add("x-client-code", s.clientCode)
	header.Add("x-feed-token", s.feedToken)

	conn, resp, err := s.dialer.Dial(streamURI, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("smartconnect: stream dial failed, status %s: %w", resp.Status, err)
		}
		return fmt.Errorf("smartconnect: stream dial failed: %w", err)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)
	go s.heartbeatLoop(conn)
	return nil
}

// Close stops the stream and closes the connection.
func (s *Stream) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
}

// Subscribe requests ticks for the tokens in the given mode and stores
// the request so a reconnect can replay it.
func (s *Stream) Subscribe(correlationID string, mode int, tokenList []TokenListEntry) error {
	req := map[string]any{
		"correlationID": correlationID,
		"action":        1,
		"params": map[string]any{
			"mode":      mode,
			"tokenList": tokenList,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[mode] = append(s.subscriptions[mode], tokenList...)
	if s.conn == nil {
		return errors.New("smartconnect: stream not connected")
	}
	return s.conn.WriteJSON(req)
}

func (s *Stream) resubscribe(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for mode, lists := range s.subscriptions {
		req := map[string]any{
			"action": 1,
			"params": map[string]any{
				"mode":      mode,
				"tokenList": lists,
			},
		}
		if err := conn.WriteJSON(req); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(heartbeatMessage)); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		mt, message, err := conn.ReadMessage()
		if err != nil {
			s.reconnect(err)
			return
		}
		if mt != websocket.BinaryMessage {
			continue // text frames are pong replies
		}
		tick, err := parseTick(message)
		if err != nil {
			log.Printf("[smartstream] tick parse: %v", err)
			continue
		}
		if s.OnTick != nil {
			s.OnTick(tick)
		}
	}
}

func (s *Stream) reconnect(cause error) {
	delay := s.retryDelay
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
		log.Printf("[smartstream] reconnect attempt %d after: %v", attempt, cause)
		if err := s.Connect(); err == nil {
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if err := s.resubscribe(conn); err != nil {
				log.Printf("[smartstream] resubscribe: %v", err)
			}
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
			return
		}
		delay *= 2
	}
	if s.OnError != nil {
		s.OnError(fmt.Errorf("smartconnect: stream reconnect exhausted: %w", cause))
	}
}

// parseTick decodes the little-endian binary tick layout. The LTP
// header is 51 bytes; quote and snap-quote modes append more fields.
func parseTick(b []byte) (StreamTick, error) {
	if len(b) < 51 {
		return StreamTick{}, fmt.Errorf("payload too short: %d bytes", len(b))
	}

	tick := StreamTick{
		Mode:         int(b[0]),
		ExchangeType: int(b[1]),
		Token:        tokenString(b[2:27]),
		LTP:          int64(binary.LittleEndian.Uint64(b[43:51])),
	}
	exTs := int64(binary.LittleEndian.Uint64(b[35:43]))
	tick.ExchangeTS = time.UnixMilli(exTs)

	if (tick.Mode == ModeQuote || tick.Mode == ModeSnapQuote) && len(b) >= 123 {
		tick.AvgPrice = int64(binary.LittleEndian.Uint64(b[59:67]))
		tick.Volume = int64(binary.LittleEndian.Uint64(b[67:75]))
	}
	if tick.Mode == ModeSnapQuote && len(b) >= 139 {
		tick.OpenInterest = int64(binary.LittleEndian.Uint64(b[131:139]))
	}
	return tick, nil
}

func tokenString(b []byte) string {
	for i := range b {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
