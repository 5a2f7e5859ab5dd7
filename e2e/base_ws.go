package e2e

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"styx-chat/auth"
	"styx-chat/domain/chat"
)

const readDeadline = 10 * time.Second

// BaseWsSuite connects real websocket clients against a running relay.
type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// Frame is the raw wire envelope; Data stays undecoded until a test
// knows what it expects.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set; skipping end-to-end suite")
	}
}

// Connect dials the relay as the given identity and returns the open
// socket. Callers own the close.
func (s *BaseWsSuite) Connect(id chat.Identity, roomID string) *websocket.Conn {
	s.header(fmt.Sprintf("  ====== connect %s -> %s ======", id.Username, roomID))

	token, err := auth.NewVerifier(s.Config.AuthSecret).Mint(id, time.Hour)
	s.Require().NoError(err)

	u := url.URL{
		Scheme:   "ws",
		Host:     s.Config.ServerAddr,
		Path:     "/ws/" + roomID,
		RawQuery: "token=" + url.QueryEscape(token),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err)
	return conn
}

// Send writes one client frame.
func (s *BaseWsSuite) Send(conn *websocket.Conn, frameType string, data any) {
	encoded, err := json.Marshal(data)
	s.Require().NoError(err)
	frame, err := json.Marshal(Frame{Type: frameType, Data: encoded})
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))
}

// WaitFor reads frames until one of the wanted type arrives. Frames of
// other types are logged and dropped.
func (s *BaseWsSuite) WaitFor(conn *websocket.Conn, frameType string) Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(readDeadline)))
	for {
		_, payload, err := conn.ReadMessage()
		s.Require().NoError(err, "waiting for %s", frameType)

		var frame Frame
		s.Require().NoError(json.Unmarshal(payload, &frame))
		if frame.Type == frameType {
			return frame
		}
		s.T().Logf("  skipped frame %s", frame.Type)
	}
}

func (s *BaseWsSuite) header(text string) {
	if s.Config.Colours {
		text = color.New(color.BgBlack, color.FgGreen).Render(text)
	}
	s.T().Log(text)
}
