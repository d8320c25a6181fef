package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a south-west/north-east rectangle.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// SubScores are the per-dimension scores of one location.
type SubScores struct {
	Competition    float64 `json:"competition"`
	Accessibility  float64 `json:"accessibility"`
	TargetAudience float64 `json:"target_audience"`
	FootTraffic    float64 `json:"foot_traffic"`
}

// Competitor is a nearby business of the same type.
type Competitor struct {
	Name     string  `json:"name"`
	Distance string  `json:"distance"`
	Rating   float64 `json:"rating,omitempty"`
}

// Place is a named point of interest near a location.
type Place struct {
	Name           string  `json:"name"`
	Type           string  `json:"type,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Demographics summarizes the population around a location.
type Demographics struct {
	Population int     `json:"population"`
	AvgIncome  float64 `json:"avg_income"`
	AgeProfile string  `json:"age_profile"`
}

// Details carries the category payloads behind the detail panels.
type Details struct {
	Hospitals       []Place      `json:"hospitals"`
	ImportantPlaces []Place      `json:"important_places"`
	Demographics    Demographics `json:"demographics"`
	Competitors     []Competitor `json:"competitors"`
}

// AnalysisResult is one scored location from a point analysis.
type AnalysisResult struct {
	LocationID string    `json:"location_id"`
	Address    string    `json:"address"`
	Position   LatLng    `json:"position"`
	TotalScore float64   `json:"total_score"`
	SubScores  SubScores `json:"sub_scores"`
	Details    Details   `json:"details"`
	Synthetic  bool      `json:"synthetic,omitempty"`
	Rank       int       `json:"rank,omitempty"`
}

// AddressEntry is one candidate address with its validation state.
type AddressEntry struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// RegionPath is a province/district/neighborhood cascade selection.
type RegionPath struct {
	Province     string `json:"province"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
}

// PanelInfo describes one open detail panel.
type PanelInfo struct {
	Key        string `json:"key"`
	Category   string `json:"category"`
	LocationID string `json:"location_id"`
	State      string `json:"state"`
}

// Notification is a transient user-facing message.
type Notification struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorEntry is one recorded session error.
type ErrorEntry struct {
	ID      int64     `json:"id"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is the session's observable state.
type Snapshot struct {
	CurrentMode          string           `json:"current_mode"`
	SelectedBusinessType string           `json:"selected_business_type"`
	CurrentPage          string           `json:"current_page"`
	AnalysisResults      []AnalysisResult `json:"analysis_results"`
	RegionPath           RegionPath       `json:"region_path"`
	LoadingStates        map[string]bool  `json:"loading_states"`
	Errors               []ErrorEntry     `json:"errors"`
	Notifications        []Notification   `json:"notifications"`
}

// SessionState bundles the snapshot with address entries and open panels.
type SessionState struct {
	Snapshot Snapshot       `json:"snapshot"`
	Entries  []AddressEntry `json:"entries"`
	Panels   []PanelInfo    `json:"panels"`
}

// RegionSelection is the cascade state after one selection.
type RegionSelection struct {
	Path          RegionPath `json:"path"`
	CanAnalyze    bool       `json:"can_analyze"`
	Provinces     []string   `json:"provinces"`
	Districts     []string   `json:"districts"`
	Neighborhoods []string   `json:"neighborhoods"`
}

// RegionSample is one scored grid point of a region scan.
type RegionSample struct {
	Position LatLng  `json:"position"`
	Score    float64 `json:"score"`
}

// NamedLocation is one ranked opportunity inside a region.
type NamedLocation struct {
	Name      string    `json:"name"`
	Position  LatLng    `json:"position"`
	Score     float64   `json:"score"`
	SubScores SubScores `json:"sub_scores"`
}

// RegionSummary aggregates the sample scores of a scan.
type RegionSummary struct {
	BestScore float64 `json:"best_score"`
	MeanScore float64 `json:"mean_score"`
	HighCount int     `json:"high_count"`
}

// HeatmapCell is one colored cell of a rendered heatmap layer.
type HeatmapCell struct {
	Bounds    Bounds  `json:"bounds"`
	Intensity float64 `json:"intensity"`
	Color     string  `json:"color"`
}

// HeatmapRamp is the low/mid/high color ramp of a layer.
type HeatmapRamp struct {
	Low  string `json:"low"`
	Mid  string `json:"mid"`
	High string `json:"high"`
}

// HeatmapLayer is a rendered heatmap.
type HeatmapLayer struct {
	Generation   int64         `json:"generation"`
	Cells        []HeatmapCell `json:"cells"`
	Ramp         HeatmapRamp   `json:"ramp"`
	Opacity      float64       `json:"opacity"`
	AvgIntensity float64       `json:"avg_intensity"`
}

// HeatmapOutcome reports whether a layer was rendered or suppressed.
type HeatmapOutcome struct {
	Layer      *HeatmapLayer `json:"layer,omitempty"`
	Suppressed bool          `json:"suppressed"`
	Message    string        `json:"message,omitempty"`
}

// RegionReport is the full result of a region scan.
type RegionReport struct {
	RunID    string          `json:"run_id"`
	Path     RegionPath      `json:"path"`
	Samples  []RegionSample  `json:"samples"`
	Top      []NamedLocation `json:"top"`
	Summary  RegionSummary   `json:"summary"`
	Heatmap  HeatmapOutcome  `json:"heatmap"`
	Fallback bool            `json:"fallback"`
}

// CreateSessionParams preselects the business type and mode of a new session.
// Both fields are optional.
type CreateSessionParams struct {
	BusinessType string `json:"business_type,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

func sessionPath(id, suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + suffix
}

// CreateSession opens a session and returns its id.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", params, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// DestroySession tears a session down.  Destroying an unknown session is
// not an error.
func (c *Client) DestroySession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

// State fetches the session's full observable state.
func (c *Client) State(ctx context.Context, id string) (*SessionState, error) {
	var out SessionState
	if err := c.do(ctx, http.MethodGet, sessionPath(id, "/state"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddLocationResult is the outcome of registering one address.
type AddLocationResult struct {
	Entry      AddressEntry `json:"entry"`
	CanAnalyze bool         `json:"can_analyze"`
}

// AddLocation registers and geocodes one candidate address for point mode.
func (c *Client) AddLocation(ctx context.Context, id, address string) (*AddLocationResult, error) {
	body := struct {
		Address string `json:"address"`
	}{Address: address}
	var out AddLocationResult
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/locations"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveLocation drops an address entry and its map marker.
func (c *Client) RemoveLocation(ctx context.Context, id, locationID string) error {
	return c.do(ctx, http.MethodDelete,
		sessionPath(id, "/locations/"+url.PathEscape(locationID)), nil, nil)
}

// Analyze runs point-mode analysis and returns ranked results.
func (c *Client) Analyze(ctx context.Context, id string) ([]AnalysisResult, error) {
	var out struct {
		Results []AnalysisResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/analyze"), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// SelectRegion applies one cascade selection.  Level is one of "province",
// "district" or "neighborhood".
func (c *Client) SelectRegion(ctx context.Context, id, level, value string) (*RegionSelection, error) {
	body := struct {
		Level string `json:"level"`
		Value string `json:"value"`
	}{Level: level, Value: value}
	var out RegionSelection
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/region"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeRegion scans the selected region.  Zoom 0 uses the session's
// current map zoom.
func (c *Client) AnalyzeRegion(ctx context.Context, id string, zoom int) (*RegionReport, error) {
	body := struct {
		Zoom int `json:"zoom,omitempty"`
	}{Zoom: zoom}
	var out RegionReport
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/region/analyze"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TogglePanelParams identifies the detail panel to open or close.
type TogglePanelParams struct {
	Category   string `json:"category"`
	LocationID string `json:"location_id"`
	Anchor     string `json:"anchor,omitempty"`
}

// TogglePanel opens or closes a detail panel and returns the panels still
// open afterwards.
func (c *Client) TogglePanel(ctx context.Context, id string, params TogglePanelParams) ([]PanelInfo, error) {
	var out struct {
		Panels []PanelInfo `json:"panels"`
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/panels/toggle"), params, &out); err != nil {
		return nil, err
	}
	return out.Panels, nil
}
