// Package smartconnect is a minimal Go client for the Angel One SmartAPI,
// covering the surface this bot needs: session management with TOTP,
// LTP and candle data, option greeks, put-call ratio, and order placement.
package smartconnect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/pquerna/otp/totp"
)

// Config holds client credentials and transport options.
type Config struct {
	APIKey string

	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 7s

	ClientLocalIP  string // default: resolved, else 127.0.0.1
	ClientPublicIP string // default: 106.193.147.98
	ClientMAC      string // default: fe:ed:fa:ce:fe:ed
}

// Session holds the tokens returned by a successful login.
type Session struct {
	AccessToken  string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// SmartConnect is the REST client. Safe for concurrent use after login.
type SmartConnect struct {
	apiKey       string
	accessToken  string
	refreshToken string
	feedToken    string

	rootURL string

	httpClient *http.Client

	clientLocalIP  string
	clientPublicIP string
	clientMAC      string

	// Called on a 403 TokenException so the owner can re-login.
	SessionExpiryHook func()
}

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.token":        "/rest/auth/angelbroking/jwt/v1/generateTokens",
	"api.ltp.data":     "/rest/secure/angelbroking/order/v1/getLtpData",
	"api.candle.data":  "/rest/secure/angelbroking/historical/v1/getCandleData",
	"api.market.data":  "/rest/secure/angelbroking/market/v1/quote",
	"api.order.place":  "/rest/secure/angelbroking/order/v1/placeOrder",
	"api.order.book":   "/rest/secure/angelbroking/order/v1/getOrderBook",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
	"api.optionGreek":  "/rest/secure/angelbroking/marketData/v1/optionGreek",
	"api.putCallRatio": "/rest/secure/angelbroking/marketData/v1/putCallRatio",
}

// New creates a SmartConnect client from cfg.
func New(cfg Config) *SmartConnect {
	root := cfg.RootURL
	if root == "" {
		root = defaultRoot
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 7 * time.Second
	}
	localIP := cfg.ClientLocalIP
	if localIP == "" {
		localIP = resolveLocalIP()
	}
	publicIP := cfg.ClientPublicIP
	if publicIP == "" {
		publicIP = "106.193.147.98"
	}
	mac := cfg.ClientMAC
	if mac == "" {
		mac = "fe:ed:fa:ce:fe:ed"
	}
	return &SmartConnect{
		apiKey:         cfg.APIKey,
		rootURL:        root,
		httpClient:     &http.Client{Timeout: timeout},
		clientLocalIP:  localIP,
		clientPublicIP: publicIP,
		clientMAC:      mac,
	}
}

func resolveLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// FeedToken returns the streaming token from the current session.
func (sc *SmartConnect) FeedToken() string { return sc.feedToken }

// AccessToken returns the current JWT.
func (sc *SmartConnect) AccessToken() string { return sc.accessToken }

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-UserType", "USER")
	h.Set("X-SourceID", "WEB")
	h.Set("X-PrivateKey", sc.apiKey)
	if sc.accessToken != "" {
		h.Set("Authorization", "Bearer "+sc.accessToken)
	}
	return h
}

func (sc *SmartConnect) buildURL(route string) (string, error) {
	p, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("smartconnect: unknown route %q", route)
	}
	u, err := url.Parse(sc.rootURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(u.Path, p)
	return u.String(), nil
}

// APIError is a non-success response from the SmartAPI.
type APIError struct {
	Route     string
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartconnect: %s failed: %s (%s)", e.Route, e.Message, e.ErrorCode)
}

func (sc *SmartConnect) doRequest(method, route string, params map[string]any) (map[string]any, error) {
	urlStr, err := sc.buildURL(route)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.Header = sc.requestHeaders()

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("smartconnect: %s returned non-JSON (status %d)", route, resp.StatusCode)
	}

	if status, ok := parsed["status"].(bool); ok && !status {
		apiErr := &APIError{
			Route:     route,
			ErrorCode: toString(parsed["errorcode"]),
			Message:   toString(parsed["message"]),
		}
		if resp.StatusCode == http.StatusForbidden && sc.SessionExpiryHook != nil {
			sc.SessionExpiryHook()
		}
		return parsed, apiErr
	}
	return parsed, nil
}

func (sc *SmartConnect) get(route string, params map[string]any) (map[string]any, error) {
	return sc.doRequest(http.MethodGet, route, params)
}

func (sc *SmartConnect) post(route string, params map[string]any) (map[string]any, error) {
	return sc.doRequest(http.MethodPost, route, params)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// GenerateSession logs in with the client code, PIN, and a TOTP code
// derived from the registered secret, then stores the session tokens.
func (sc *SmartConnect) GenerateSession(clientCode, password, totpSecret string) (Session, error) {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return Session{}, fmt.Errorf("smartconnect: totp generation: %w", err)
	}

	resp, err := sc.post("api.login", map[string]any{
		"clientcode": clientCode,
		"password":   password,
		"totp":       code,
	})
	if err != nil {
		return Session{}, err
	}

	data, ok := resp["data"].(map[string]any)
	if !ok {
		return Session{}, errors.New("smartconnect: login response missing data")
	}
	sess := Session{
		AccessToken:  toString(data["jwtToken"]),
		RefreshToken: toString(data["refreshToken"]),
		FeedToken:    toString(data["feedToken"]),
	}
	if sess.AccessToken == "" {
		return Session{}, errors.New("smartconnect: login response missing jwtToken")
	}
	sc.accessToken = sess.AccessToken
	sc.refreshToken = sess.RefreshToken
	sc.feedToken = sess.FeedToken
	return sess, nil
}

// RenewSession exchanges the refresh token for a new access token.
func (sc *SmartConnect) RenewSession() error {
	resp, err := sc.post("api.token", map[string]any{"refreshToken": sc.refreshToken})
	if err != nil {
		return err
	}
	data, ok := resp["data"].(map[string]any)
	if !ok {
		return errors.New("smartconnect: token response missing data")
	}
	sc.accessToken = toString(data["jwtToken"])
	sc.feedToken = toString(data["feedToken"])
	return nil
}

// TerminateSession logs the client out.
func (sc *SmartConnect) TerminateSession(clientCode string) error {
	_, err := sc.post("api.logout", map[string]any{"clientcode": clientCode})
	return err
}

// LTP returns the last traded price in paise for one instrument.
func (sc *SmartConnect) LTP(exchange, tradingSymbol, token string) (int64, error) {
	resp, err := sc.post("api.ltp.data", map[string]any{
		"exchange":      exchange,
		"tradingsymbol": tradingSymbol,
		"symboltoken":   token,
	})
	if err != nil {
		return 0, err
	}
	data, ok := resp["data"].(map[string]any)
	if !ok {
		return 0, errors.New("smartconnect: ltp response missing data")
	}
	ltp, ok := data["ltp"].(float64)
	if !ok {
		return 0, errors.New("smartconnect: ltp response missing ltp")
	}
	return int64(ltp*100 + 0.5), nil
}

// Candle is one historical OHLCV row. Prices are in paise.
type Candle struct {
	TS     time.Time
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// CandleData fetches historical candles for the token over [from, to]
// at the given interval (e.g. "ONE_MINUTE", "FIVE_MINUTE").
func (sc *SmartConnect) CandleData(exchange, token, interval string, from, to time.Time) ([]Candle, error) {
	const layout = "2006-01-02 15:04"
	resp, err := sc.post("api.candle.data", map[string]any{
		"exchange":    exchange,
		"symboltoken": token,
		"interval":    interval,
		"fromdate":    from.Format(layout),
		"todate":      to.Format(layout),
	})
	if err != nil {
		return nil, err
	}
	rows, ok := resp["data"].([]any)
	if !ok {
		return nil, errors.New("smartconnect: candle response missing data")
	}

	candles := make([]Candle, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]any)
		if !ok || len(row) < 6 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, toString(row[0]))
		if err != nil {
			continue
		}
		toPaise := func(v any) int64 {
			f, _ := v.(float64)
			return int64(f*100 + 0.5)
		}
		vol, _ := row[5].(float64)
		candles = append(candles, Candle{
			TS:     ts,
			Open:   toPaise(row[1]),
			High:   toPaise(row[2]),
			Low:    toPaise(row[3]),
			Close:  toPaise(row[4]),
			Volume: int64(vol),
		})
	}
	return candles, nil
}

// GreekRow is one strike's greeks from the optionGreek endpoint.
// The API publishes numeric fields as strings.
type GreekRow struct {
	Name         string `json:"name"`
	Expiry       string `json:"expiry"`
	StrikePrice  string `json:"strikePrice"`
	OptionType   string `json:"optionType"` // CE, PE
	Delta        string `json:"delta"`
	Gamma        string `json:"gamma"`
	Theta        string `json:"theta"`
	Vega         string `json:"vega"`
	IV           string `json:"impliedVolatility"`
	TradeVolume  string `json:"tradeVolume"`
}

// OptionGreeks fetches greeks for every strike of name/expiry
// (e.g. "NIFTY", "25SEP2026").
func (sc *SmartConnect) OptionGreeks(name, expiry string) ([]GreekRow, error) {
	resp, err := sc.post("api.optionGreek", map[string]any{
		"name":       name,
		"expirydate": expiry,
	})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp["data"])
	if err != nil {
		return nil, err
	}
	var rows []GreekRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("smartconnect: optionGreek decode: %w", err)
	}
	return rows, nil
}

// PCRRow is one symbol's put-call ratio.
type PCRRow struct {
	PCR           float64 `json:"pcr"`
	TradingSymbol string  `json:"tradingSymbol"`
}

// PutCallRatio fetches the current OI put-call ratios.
func (sc *SmartConnect) PutCallRatio() ([]PCRRow, error) {
	resp, err := sc.get("api.putCallRatio", nil)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp["data"])
	if err != nil {
		return nil, err
	}
	var rows []PCRRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("smartconnect: putCallRatio decode: %w", err)
	}
	return rows, nil
}

// PlaceOrder places an order and returns the broker order ID.
func (sc *SmartConnect) PlaceOrder(params map[string]any) (string, error) {
	resp, err := sc.post("api.order.place", params)
	if err != nil {
		return "", err
	}
	data, ok := resp["data"].(map[string]any)
	if !ok {
		return "", errors.New("smartconnect: order response missing data")
	}
	id := toString(data["orderid"])
	if id == "" {
		return "", errors.New("smartconnect: order response missing orderid")
	}
	return id, nil
}

// OrderBook returns the raw order book response.
func (sc *SmartConnect) OrderBook() (map[string]any, error) {
	return sc.get("api.order.book", nil)
}

// SearchScrip searches instruments on an exchange.
func (sc *SmartConnect) SearchScrip(exchange, query string) (map[string]any, error) {
	return sc.post("api.search.scrip", map[string]any{
		"exchange":    exchange,
		"searchscrip": query,
	})
}
