package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/panel"
	"github.com/lokaskor/lokaskor/internal/session"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// SessionHandler exposes session lifecycle and engine operations.
type SessionHandler struct {
	manager *session.Manager
	log     logging.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(manager *session.Manager, log logging.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, log: log.Named("handlers")}
}

func (h *SessionHandler) resolve(c *gin.Context) (*session.Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

type createSessionRequest struct {
	BusinessType string `json:"business_type"`
	Mode         string `json:"mode"`
}

// Create opens a new session, optionally preselecting business type and mode.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}

	s := h.manager.Create()

	p := statestore.Partial{}
	if req.BusinessType != "" {
		p.SelectedBusinessType = statestore.Ptr(req.BusinessType)
	}
	if req.Mode != "" {
		mode := statestore.Mode(req.Mode)
		if mode != statestore.ModePoint && mode != statestore.ModeRegion {
			h.manager.Destroy(s.ID)
			respondError(c, apperrors.Validation("unknown mode").WithDetail(req.Mode))
			return
		}
		p.CurrentMode = &mode
	}
	s.Store.Set(p)

	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID})
}

// Destroy tears a session down.
func (h *SessionHandler) Destroy(c *gin.Context) {
	h.manager.Destroy(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// stateResponse is the full observable state of a session.
type stateResponse struct {
	Snapshot statestore.Snapshot         `json:"snapshot"`
	Entries  []orchestratorEntryResponse `json:"entries"`
	Panels   []panel.Info                `json:"panels"`
}

type orchestratorEntryResponse struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// State returns the session snapshot plus address entries and open panels.
func (h *SessionHandler) State(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	entries := s.Point.Entries()
	out := make([]orchestratorEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, orchestratorEntryResponse{
			ID: e.ID, Text: e.Text, State: string(e.State), Error: e.Error,
		})
	}

	c.JSON(http.StatusOK, stateResponse{
		Snapshot: s.Store.Get(),
		Entries:  out,
		Panels:   s.Panels.Open(),
	})
}

type addLocationRequest struct {
	Address string `json:"address"`
}

// AddLocation registers and geocodes one candidate address.
func (h *SessionHandler) AddLocation(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	var req addLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}

	entry, err := s.Point.AddAddress(c.Request.Context(), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry, "can_analyze": s.Point.CanAnalyze()})
}

// RemoveLocation drops an address entry.
func (h *SessionHandler) RemoveLocation(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}
	s.Point.RemoveAddress(c.Param("locID"))
	s.Panels.CloseForLocation(c.Request.Context(), c.Param("locID"))
	s.Map.Remove(c.Param("locID"))
	c.Status(http.StatusNoContent)
}

// Analyze runs point-mode analysis.
func (h *SessionHandler) Analyze(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	results, err := s.Point.Analyze(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "summary": s.Point.Summary()})
}

type selectRegionRequest struct {
	Level string `json:"level"`
	Value string `json:"value"`
}

// SelectRegion applies one cascade selection.
func (h *SessionHandler) SelectRegion(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	var req selectRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}

	path, err := s.Region.Select(region.Level(req.Level), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":          path,
		"can_analyze":   s.Region.CanAnalyze(),
		"provinces":     s.Region.Options(region.LevelProvince),
		"districts":     s.Region.Options(region.LevelDistrict),
		"neighborhoods": s.Region.Options(region.LevelNeighborhood),
	})
}

type analyzeRegionRequest struct {
	Zoom int `json:"zoom"`
}

// AnalyzeRegion runs a region scan.
func (h *SessionHandler) AnalyzeRegion(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	var req analyzeRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}
	zoom := req.Zoom
	if zoom == 0 {
		zoom = s.Canvas.Zoom()
	}

	report, err := s.Region.Analyze(c.Request.Context(), zoom)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type togglePanelRequest struct {
	Category   string `json:"category"`
	LocationID string `json:"location_id"`
	Anchor     string `json:"anchor"`
}

// TogglePanel opens or closes a detail panel.
func (h *SessionHandler) TogglePanel(c *gin.Context) {
	s, ok := h.resolve(c)
	if !ok {
		return
	}

	var req togglePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}

	err := s.Panels.Toggle(c.Request.Context(),
		location.Category(req.Category), req.LocationID, panel.Anchor(req.Anchor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"panels": s.Panels.Open()})
}
