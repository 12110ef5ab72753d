package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"channel-gateway/domain"
)

type testEventFanoutSuite struct {
	BaseGatewaySuite
}

func TestEventFanoutSuite(t *testing.T) {
	suite.Run(t, &testEventFanoutSuite{})
}

func (s *testEventFanoutSuite) TestFullSubscribeAndTriggerFlow() {
	const channel = "presence-war-room"

	ana := domain.Principal{ID: "u1", DisplayName: "Ana", Email: "ana@example.com"}
	bob := domain.Principal{ID: "u2", DisplayName: "Bob", Email: "bob@example.com"}

	// --- STEP 1: SESSIONS ---
	// Sessions come from the application platform, the gateway only
	// verifies them. The suite plays the platform here.
	s.Step("Step 1: Issue session tokens")
	anaToken, err := s.Tokens.Issue(ana, nil)
	s.Require().NoError(err)
	bobToken, err := s.Tokens.Issue(bob, nil)
	s.Require().NoError(err)

	// --- STEP 2: CONNECT ---
	s.Step("Step 2: Open websockets")
	anaConn, anaSocket := s.Dial(anaToken)
	defer anaConn.Close()
	bobConn, bobSocket := s.Dial(bobToken)
	defer bobConn.Close()

	// --- STEP 3: AUTHORIZE + SUBSCRIBE ---
	s.Step("Step 3: Authorize and subscribe to the presence channel")
	s.subscribe(anaConn, anaToken, anaSocket, channel)
	s.subscribe(bobConn, bobToken, bobSocket, channel)

	// Ana was already in the room, so she learns about Bob joining
	joined := s.ReadFrame(anaConn)
	s.Require().Equal("gateway:member_added", joined.Event)

	var member domain.PresenceMember
	s.Require().NoError(json.Unmarshal(joined.Data, &member))
	s.Require().Equal("u2", member.UserID)

	// --- STEP 4: TRIGGER ---
	s.Step("Step 4: Trigger an event through the internal endpoint")
	headers, body := s.SignBody(domain.Event{
		Channel: channel,
		Name:    "incident.update",
		Payload: json.RawMessage(`{"severity":"high"}`),
	})
	status, _ := s.PostJSON("/events", headers, body)
	s.Require().Equal(200, status)

	for _, conn := range []*websocket.Conn{anaConn, bobConn} {
		frame := s.ReadFrame(conn)
		s.Require().Equal("incident.update", frame.Event)
		s.Require().Equal(channel, frame.Channel)
		s.Require().JSONEq(`{"severity":"high"}`, string(frame.Data))
	}

	// --- STEP 5: UNSIGNED TRIGGER IS REFUSED ---
	s.Step("Step 5: Reject a trigger without a body signature")
	status, _ = s.PostJSON("/events", map[string]string{"X-Gateway-Key": s.Config.AppKey}, body)
	s.Require().Equal(401, status)
}

func (s *testEventFanoutSuite) TestAdminRoleGrantIsAudited() {
	operator := domain.Principal{ID: "op1", DisplayName: "Operator", Email: "op@example.com"}
	operatorToken, err := s.Tokens.Issue(operator, nil)
	s.Require().NoError(err)

	s.Step("Step 1: Grant a role with the admin credential")
	status, raw := s.PostJSON("/admin/roles",
		map[string]string{"Authorization": "Bearer " + operatorToken},
		map[string]string{"user_id": "u9", "role": "moderator", "credential": s.Config.AdminCredential})
	s.Require().Equal(200, status)

	var granted struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(raw, &granted))

	roles, err := s.Tokens.Roles(granted.Token)
	s.Require().NoError(err)
	s.Require().Equal([]string{"moderator"}, roles)

	s.Step("Step 2: Refuse a grant with the wrong credential")
	status, _ = s.PostJSON("/admin/roles",
		map[string]string{"Authorization": "Bearer " + operatorToken},
		map[string]string{"user_id": "u9", "role": "moderator", "credential": "wrong"})
	s.Require().Equal(403, status)

	s.Step("Step 3: Both decisions landed in the audit trail")
	s.Require().Eventually(func() bool {
		entries, err := s.Audit.List(0)
		if err != nil {
			return false
		}
		sawGranted, sawRefused := false, false
		for _, entry := range entries {
			if entry.Action != "role.grant" || entry.Actor != "op1" {
				continue
			}
			sawGranted = sawGranted || entry.Outcome == domain.OutcomeGranted
			sawRefused = sawRefused || entry.Outcome == domain.OutcomeRefused
		}
		return sawGranted && sawRefused
	}, 2*time.Second, 100*time.Millisecond, "Audit entries not found within timeout")
}

// subscribe fetches a grant over /auth and performs the websocket
// subscribe handshake, asserting the acknowledgement
func (s *testEventFanoutSuite) subscribe(conn *websocket.Conn, token string, socket domain.SocketID, channel string) {
	status, raw := s.PostJSON("/auth",
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"socket_id": string(socket), "channel_name": channel})
	s.Require().Equal(200, status)

	var grant domain.AuthorizationGrant
	s.Require().NoError(json.Unmarshal(raw, &grant))

	subscribe := map[string]any{
		"event": "gateway:subscribe",
		"data": map[string]string{
			"channel":      channel,
			"auth":         grant.Auth,
			"channel_data": grant.ChannelData,
		},
	}
	s.Require().NoError(conn.WriteJSON(subscribe))

	ack := s.ReadFrame(conn)
	s.Require().Equal("gateway:subscription_succeeded", ack.Event)
	s.Require().Equal(channel, ack.Channel)
}
