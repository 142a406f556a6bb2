package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/abhisek/mindscale/internal/assessment"
	"github.com/abhisek/mindscale/internal/interview"
	"github.com/abhisek/mindscale/internal/patient"
	"github.com/abhisek/mindscale/internal/scorer"
)

// inbound is a client message.
type inbound struct {
	Type    string         `json:"type"`    // "respondent_info" or "utterance"
	Content string         `json:"content"` // utterance text
	Info    map[string]any `json:"info"`    // respondent info
}

type statusEvent struct {
	Type         string `json:"type"`
	CurrentItem  string `json:"current_item"`
	CurrentIndex int    `json:"current_index"`
	TotalItems   int    `json:"total_items"`
}

type messageEvent struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completeEvent struct {
	Type   string         `json:"type"`
	Scores map[string]int `json:"scores"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// retryableErrorText is shown when a model call fails; state is
// unchanged, so the respondent can simply resend.
const retryableErrorText = "抱歉，系统暂时出现问题，请再发送一次。"

// handleSession runs one interview over one websocket connection.
// Messages are processed strictly one at a time: the read loop does
// not pick up the next message until the current turn, including any
// model call, has completed.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if s.cfg.AllowedOrigin != "" {
		opts.OriginPatterns = []string{s.cfg.AllowedOrigin}
	}
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	sessionID := uuid.NewString()
	logger := s.logger.With("session", sessionID)
	logger.Info("session opened", "remote", r.RemoteAddr)

	adapter := scorer.NewAdapter(s.provider, scorer.DefaultConfig())
	engine := assessment.New(s.catalog, adapter, s.progress, s.results, assessment.Options{
		SkipItemID:    s.cfg.SkipItemID,
		SkipThreshold: &s.cfg.SkipThreshold,
		Logger:        logger,
	})
	driver := interview.NewDriver(engine)

	ctx := r.Context()
	started := false

	// Teardown takes a best-effort snapshot when an id is known.
	defer func() {
		if started {
			engine.SaveProgress(context.WithoutCancel(ctx))
		}
		logger.Info("session closed")
	}()

	for {
		var msg inbound
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			return // disconnect
		}

		switch msg.Type {
		case "respondent_info":
			out, err := s.startSession(ctx, engine, driver, msg.Info)
			if err != nil {
				s.send(ctx, ws, errorEvent{Type: "error", Content: err.Error()})
				continue
			}
			started = true
			s.emit(ctx, ws, driver, out)

		case "utterance":
			if !started {
				s.send(ctx, ws, errorEvent{Type: "error", Content: "请先提交基本信息。"})
				continue
			}
			out, err := driver.HandleUtterance(ctx, msg.Content)
			if err != nil {
				logger.Error("turn failed", "error", err)
				s.send(ctx, ws, errorEvent{Type: "error", Content: retryableErrorText})
				continue
			}
			s.emit(ctx, ws, driver, out)

		default:
			s.send(ctx, ws, errorEvent{Type: "error", Content: fmt.Sprintf("未知消息类型: %s", msg.Type)})
		}
	}
}

// startSession validates the respondent info, resumes a prior run when
// a snapshot exists, and returns the opening output.
func (s *Server) startSession(ctx context.Context, engine *assessment.Engine, driver *interview.Driver, info map[string]any) (interview.Output, error) {
	id, _ := info["id"].(string)
	if id == "" {
		return interview.Output{}, fmt.Errorf("基本信息缺少ID字段")
	}
	if s.cfg.RequireAgentID && !patient.ValidID(id) {
		return interview.Output{}, fmt.Errorf("ID必须符合AI001-AI099格式")
	}

	if out, ok := driver.Resume(ctx, id); ok {
		return out, nil
	}

	engine.SetRespondentInfo(info)
	engine.SaveProgress(ctx)
	return driver.Start(), nil
}

// emit translates one driver output into wire events.
func (s *Server) emit(ctx context.Context, ws *websocket.Conn, driver *interview.Driver, out interview.Output) {
	switch out.Kind {
	case interview.KindQuestion:
		s.send(ctx, ws, statusEvent{
			Type:         "status",
			CurrentItem:  fmt.Sprintf("第 %d 题", out.ItemIndex+1),
			CurrentIndex: out.ItemIndex,
			TotalItems:   out.TotalItems,
		})
		s.send(ctx, ws, messageEvent{Type: "message", Role: "system", Content: out.Text})

	case interview.KindMessage:
		if out.Visible {
			s.send(ctx, ws, messageEvent{Type: "message", Role: "system", Content: out.Text})
		}

	case interview.KindComplete:
		s.send(ctx, ws, completeEvent{Type: "complete", Scores: driver.Engine().Scores()})
	}
}

func (s *Server) send(ctx context.Context, ws *websocket.Conn, event any) {
	if err := wsjson.Write(ctx, ws, event); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
	}
}
