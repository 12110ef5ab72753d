package e2e

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"channel-gateway/auth"
	"channel-gateway/dispatch"
	"channel-gateway/domain"
	"channel-gateway/infrastructure/httpapi"
	"channel-gateway/observability"
	"channel-gateway/repositories"
	"channel-gateway/services"
	"channel-gateway/transport/ws"
)

// BaseGatewaySuite boots a full in-process gateway: real websocket hub,
// real dispatcher, badger-backed audit trail, the whole HTTP surface.
// Scenarios drive it exactly like an external client would.
type BaseGatewaySuite struct {
	suite.Suite
	Config Config

	Server *httptest.Server
	Tokens *auth.TokenStore
	Audit  repositories.AuditRepository

	db     *badger.DB
	cancel context.CancelFunc
}

func (s *BaseGatewaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	logger := logs.GetLoggerFromString("error")

	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	credentialHash, err := auth.HashCredential(s.Config.AdminCredential)
	s.Require().NoError(err)

	monitoring := observability.NewMonitoring()
	s.Tokens = auth.NewTokenStore([]byte(s.Config.SessionSecret), time.Hour)
	verifier := auth.NewVerifier(s.Tokens)
	authorizer := auth.NewAuthorizer(s.Config.AppKey, []byte(s.Config.AppSecret))
	hub := ws.NewHub(logger, verifier, authorizer, monitoring, 32)
	dispatcher := dispatch.NewDispatcher(logger, hub, nil, monitoring)
	s.Audit = repositories.NewAuditRepository(s.db, logger)
	admin := services.NewAdminService(logger, verifier, s.Tokens, s.Audit, credentialHash)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	go func() {
		_ = hub.Run(ctx)
	}()

	server := httpapi.NewServer(logger, verifier, authorizer, dispatcher, admin, monitoring,
		hub.HandleWS, s.Config.AppKey, []byte(s.Config.AppSecret))
	s.Server = httptest.NewServer(server.Router())
}

func (s *BaseGatewaySuite) TearDownSuite() {
	s.Server.Close()
	s.cancel()
	s.Require().NoError(s.db.Close())
}

// Step prints a colorized header so scenario logs stay readable
func (s *BaseGatewaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// PostJSON sends a JSON body and returns the status and decoded response,
// logging timings and optionally full bodies if E2E_DEBUG_JSON is enabled
func (s *BaseGatewaySuite) PostJSON(path string, headers map[string]string, payload any) (int, []byte) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.Server.URL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := s.Server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "POST %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(body))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	return resp.StatusCode, raw
}

// SignBody computes the trigger signature the internal endpoint expects
func (s *BaseGatewaySuite) SignBody(payload any) (map[string]string, any) {
	body, err := json.Marshal(payload)
	s.Require().NoError(err)

	mac := hmac.New(sha256.New, []byte(s.Config.AppSecret))
	mac.Write(body)

	headers := map[string]string{
		"X-Gateway-Key":       s.Config.AppKey,
		"X-Gateway-Signature": hex.EncodeToString(mac.Sum(nil)),
	}
	// The signed bytes must travel verbatim, so hand back the raw body
	return headers, json.RawMessage(body)
}

// Dial opens a websocket against the gateway and waits for the
// connection_established frame, returning the connection and socket id
func (s *BaseGatewaySuite) Dial(token string) (*websocket.Conn, domain.SocketID) {
	wsURL := "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)

	frame := s.ReadFrame(conn)
	s.Require().Equal("gateway:connection_established", frame.Event)

	var established struct {
		SocketID string `json:"socket_id"`
	}
	s.Require().NoError(json.Unmarshal(frame.Data, &established))
	return conn, domain.SocketID(established.SocketID)
}

func (s *BaseGatewaySuite) ReadFrame(conn *websocket.Conn) domain.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))

	var frame domain.Frame
	_, raw, err := conn.ReadMessage()
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, &frame))
	return frame
}
