package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"banter/internal/bot"
	"banter/internal/chat"
	"banter/internal/platform"
)

var errArchiveDisabled = errors.New("archive is not enabled")

func (s *Server) health(c *gin.Context) {
	ok(c, gin.H{"status": "ok"})
}

func (s *Server) listInstances(c *gin.Context) {
	ok(c, gin.H{"identities": s.registry.Identities()})
}

// instanceView is the wire form of one instance.
type instanceView struct {
	Identity     string               `json:"identity"`
	UUID         string               `json:"uuid"`
	Persona      bot.Persona          `json:"persona"`
	NotesVisible bool                 `json:"notes_visible"`
	Messages     []chat.MessageRecord `json:"messages"`
}

func viewOf(inst *bot.Instance) instanceView {
	msgs := inst.Messages()
	recs := make([]chat.MessageRecord, 0, len(msgs))
	for i := range msgs {
		recs = append(recs, msgs[i].Record())
	}
	return instanceView{
		Identity:     inst.Identity(),
		UUID:         inst.UUID(),
		Persona:      inst.Persona(),
		NotesVisible: inst.NotesVisible(),
		Messages:     recs,
	}
}

func (s *Server) getInstance(c *gin.Context) {
	inst := s.registry.Peek(c.Param("identity"))
	if inst == nil {
		fail(c, http.StatusNotFound, errors.New("no such instance"))
		return
	}
	ok(c, viewOf(inst))
}

func (s *Server) createInstance(c *gin.Context) {
	inst, err := s.registry.GetOrCreate(c.Param("identity"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, viewOf(inst))
}

func (s *Server) deleteInstance(c *gin.Context) {
	if err := s.registry.Remove(c.Param("identity")); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, gin.H{"removed": c.Param("identity")})
}

func (s *Server) resetInstance(c *gin.Context) {
	inst, err := s.registry.GetOrCreate(c.Param("identity"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if err := inst.Reset(); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, gin.H{"ack": bot.ResetAck})
}

func (s *Server) toggleNotes(c *gin.Context) {
	inst, err := s.registry.GetOrCreate(c.Param("identity"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, gin.H{"notes_visible": inst.ToggleNotes()})
}

// appendMessage injects a message into the transcript without running a
// generation. Only conversation roles are accepted; tool turns must come
// from a real tool round.
func (s *Server) appendMessage(c *gin.Context) {
	var req struct {
		Role    string `json:"role" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	role := chat.Role(req.Role)
	switch role {
	case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
	default:
		fail(c, http.StatusBadRequest, errors.New("role must be user, assistant, or system"))
		return
	}

	msg, err := chat.NewMessage(role, req.Content)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	inst, err := s.registry.GetOrCreate(c.Param("identity"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if err := inst.AppendMessage(msg); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, gin.H{"length": inst.Len()})
}

// respond runs one full response cycle against a per-request console
// adapter and returns whatever the persona sent.
func (s *Server) respond(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
		Sender  string `json:"sender"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	inst, err := s.registry.GetOrCreate(c.Param("identity"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	console := platform.NewConsole(nil, nil)
	ev := console.NextEvent(req.Message)
	if req.Sender != "" {
		ev.Sender.Name = req.Sender
	}

	msg, err := inst.BuildEventMessage(c.Request.Context(), console, ev)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := inst.RespondWithRetry(c.Request.Context(), console, ev, msg); err != nil {
		fail(c, http.StatusBadGateway, err)
		return
	}
	ok(c, gin.H{"messages": console.ResetSends()})
}

func (s *Server) searchArchive(c *gin.Context) {
	if s.arch == nil {
		fail(c, http.StatusNotFound, errArchiveDisabled)
		return
	}
	identity := c.Param("identity")
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	matches, err := s.arch.Search(c.Request.Context(), identity, query, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, gin.H{"matches": matches})
}
