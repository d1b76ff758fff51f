// internal/server/tools.go
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-food-log/internal/display"
	"mcp-food-log/internal/models"
	"mcp-food-log/internal/portions"
	"mcp-food-log/internal/storage"
	"mcp-food-log/internal/tracker"
)

type SessionParams struct {
	SessionID string `json:"session_id" description:"Session returned by start_session"`
}

type LogPhotoParams struct {
	SessionID         string         `json:"session_id" description:"Session returned by start_session"`
	ImageBase64       string         `json:"image_base64,omitempty" description:"Captured photo; empty means the capture was cancelled"`
	PermissionGranted *bool          `json:"permission_granted,omitempty" description:"Camera permission result (defaults to true)"`
	Quantities        map[string]any `json:"quantities,omitempty" description:"Answers to the quantity prompts keyed by food; missing answers count as 1"`
}

type AddItemParams struct {
	SessionID string `json:"session_id" description:"Session returned by start_session"`
	Food      string `json:"food" description:"Food name"`
	Unit      string `json:"unit" description:"Unit name, e.g. g or pezzo"`
	Quantity  any    `json:"quantity,omitempty" description:"Number of units; invalid or missing counts as 1"`
}

type ResolveMassParams struct {
	Food     string `json:"food" description:"Food name"`
	Unit     string `json:"unit" description:"Unit name"`
	Quantity any    `json:"quantity,omitempty" description:"Number of units; invalid or missing counts as 1"`
}

// SessionView is what tools return about a session.
type SessionView struct {
	SessionID string              `json:"session_id"`
	StartedAt time.Time           `json:"started_at"`
	Photo     string              `json:"photo,omitempty"`
	Items     []models.LoggedItem `json:"items"`
	Totals    models.Totals       `json:"totals"`
	Display   []string            `json:"display"`
}

type LogPhotoResult struct {
	SessionView
	Status tracker.CaptureStatus `json:"status"`
	Steps  []tracker.Step        `json:"steps,omitempty"`
}

type AddItemResult struct {
	SessionView
	Step tracker.Step `json:"step"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	// Convert the Arguments map to JSON bytes, then unmarshal to target
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", ErrInvalidArgument, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: failed to unmarshal parameters: %v", ErrInvalidArgument, err)
	}

	return nil
}

// quantityArg accepts a JSON number or a user-typed string.
func quantityArg(v any) float64 {
	switch q := v.(type) {
	case float64:
		return q
	case string:
		return portions.ParseQuantity(q)
	default:
		return portions.DefaultQuantity
	}
}

func (s *FoodLogServer) handleStartSession(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	session := tracker.NewSession()
	rec := storage.SessionRecord{ID: session.ID, StartedAt: session.StartedAt}
	if err := s.storage.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	s.logger.Info("session started", zap.String("session", session.ID))
	return s.createJSONResponse(s.view(rec, session))
}

// handleLogPhoto runs the photo pipeline with the permission, image and
// quantity answers supplied in the call.
func (s *FoodLogServer) handleLogPhoto(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogPhotoParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidArgument)
	}
	defer s.locks.lock(params.SessionID)()

	rec, session, err := s.loadSession(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}

	camera := &requestCamera{granted: params.PermissionGranted == nil || *params.PermissionGranted}
	if params.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(params.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: image_base64: %v", ErrInvalidArgument, err)
		}
		camera.photo = &models.Photo{Data: data, Source: "upload", CapturedAt: time.Now()}
	}

	t := s.newTracker(tracker.WithCamera(camera), tracker.WithPrompter(answerPrompter(params.Quantities)))

	before := session.Len()
	result, runErr := t.TakePhoto(ctx, session)
	// items logged before a cancellation are kept
	if err := s.persist(context.WithoutCancel(ctx), rec, session, before); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, fmt.Errorf("failed to log photo: %w", runErr)
	}

	return s.createJSONResponse(LogPhotoResult{
		SessionView: s.view(*rec, session),
		Status:      result.Status,
		Steps:       result.Steps,
	})
}

func (s *FoodLogServer) handleAddItem(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AddItemParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Food == "" {
		return nil, fmt.Errorf("%w: food is required", ErrInvalidArgument)
	}

	if params.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidArgument)
	}
	defer s.locks.lock(params.SessionID)()

	rec, session, err := s.loadSession(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}

	before := session.Len()
	step := s.newTracker().AddItem(ctx, session, params.Food, params.Unit, quantityArg(params.Quantity))
	if err := s.persist(context.WithoutCancel(ctx), rec, session, before); err != nil {
		return nil, err
	}

	return s.createJSONResponse(AddItemResult{
		SessionView: s.view(*rec, session),
		Step:        step,
	})
}

func (s *FoodLogServer) handleGetItems(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SessionParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	rec, session, err := s.loadSession(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(s.view(*rec, session))
}

func (s *FoodLogServer) handleGetTotals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SessionParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	_, session, err := s.loadSession(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}
	totals := session.Totals()
	return s.createJSONResponse(map[string]interface{}{
		"session_id": session.ID,
		"totals":     totals,
		"display":    display.TotalsLines(totals),
	})
}

func (s *FoodLogServer) handleResolveMass(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ResolveMassParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Food == "" {
		return nil, fmt.Errorf("%w: food is required", ErrInvalidArgument)
	}

	quantity := quantityArg(params.Quantity)
	_, known := s.portions.GramsPerUnit(params.Food, params.Unit)
	return s.createJSONResponse(map[string]interface{}{
		"food":     params.Food,
		"unit":     params.Unit,
		"quantity": quantity,
		"grams":    s.portions.Resolve(params.Food, params.Unit, quantity),
		"fallback": !known,
	})
}

func (s *FoodLogServer) handleListPortions(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(map[string]interface{}{
		"portions":                s.portions.Entries(),
		"fallback_grams_per_unit": portions.FallbackGramsPerUnit,
	})
}

func (s *FoodLogServer) handleEndSession(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SessionParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidArgument)
	}
	defer s.locks.lock(params.SessionID)()

	if err := s.storage.DeleteSession(ctx, params.SessionID); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	s.logger.Info("session ended", zap.String("session", params.SessionID))
	return s.createJSONResponse(map[string]interface{}{
		"session_id": params.SessionID,
		"ended":      true,
	})
}

func (s *FoodLogServer) newTracker(opts ...tracker.Option) *tracker.Tracker {
	opts = append([]tracker.Option{tracker.WithLogger(s.logger.Named("tracker"))}, opts...)
	return tracker.New(s.recognizer, s.fetcher, s.portions, opts...)
}

func (s *FoodLogServer) loadSession(ctx context.Context, id string) (*storage.SessionRecord, *tracker.Session, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: session_id is required", ErrInvalidArgument)
	}
	rec, err := s.storage.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.storage.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, tracker.RestoreSession(rec.ID, rec.StartedAt, items), nil
}

// persist journals the items logged since before and the latest photo.
func (s *FoodLogServer) persist(ctx context.Context, rec *storage.SessionRecord, session *tracker.Session, before int) error {
	if err := s.storage.AppendItems(ctx, session.ID, session.Items()[before:]); err != nil {
		return fmt.Errorf("failed to save items: %w", err)
	}
	if session.Photo != nil && session.Photo.Source != rec.PhotoSource {
		if err := s.storage.SetPhotoSource(ctx, session.ID, session.Photo.Source); err != nil {
			return fmt.Errorf("failed to save photo: %w", err)
		}
		rec.PhotoSource = session.Photo.Source
	}
	return nil
}

func (s *FoodLogServer) view(rec storage.SessionRecord, session *tracker.Session) SessionView {
	items := session.Items()
	if items == nil {
		items = []models.LoggedItem{}
	}
	totals := session.Totals()

	lines := make([]string, 0, len(items)+5)
	for _, item := range items {
		lines = append(lines, display.ItemLine(item))
	}
	lines = append(lines, display.TotalsLines(totals)...)

	return SessionView{
		SessionID: session.ID,
		StartedAt: rec.StartedAt,
		Photo:     rec.PhotoSource,
		Items:     items,
		Totals:    totals,
		Display:   lines,
	}
}

type toolDef struct {
	tool    *protocol.Tool
	handler toolHandler
}

func objectSchema(required []string, props map[string]interface{}) protocol.InputSchema {
	return protocol.InputSchema{Type: protocol.Object, Properties: props, Required: required}
}

var (
	sessionIDProp = map[string]interface{}{"type": "string", "description": "Session returned by start_session"}
	foodProp      = map[string]interface{}{"type": "string", "description": "Food name"}
	unitProp      = map[string]interface{}{"type": "string", "description": "Unit name, e.g. g or pezzo"}
	quantityProp  = map[string]interface{}{
		"type":        []string{"number", "string"},
		"description": "Number of units; a typed answer such as \"200g\" is read by its leading number, anything else counts as 1",
	}
)

func (s *FoodLogServer) toolDefs() []toolDef {
	sessionOnly := objectSchema([]string{"session_id"}, map[string]interface{}{"session_id": sessionIDProp})
	return []toolDef{
		{&protocol.Tool{
			Name:        "start_session",
			Description: "Start a food log session with an empty item list",
			InputSchema: objectSchema(nil, nil),
		}, s.handleStartSession},
		{&protocol.Tool{
			Name:        "log_photo",
			Description: "Log the foods recognized in a photo, using the supplied quantity answers",
			InputSchema: objectSchema([]string{"session_id"}, map[string]interface{}{
				"session_id":         sessionIDProp,
				"image_base64":       map[string]interface{}{"type": "string", "description": "Captured photo; empty means the capture was cancelled"},
				"permission_granted": map[string]interface{}{"type": "boolean", "description": "Camera permission result (defaults to true)"},
				"quantities":         map[string]interface{}{"type": "object", "description": "Answers to the quantity prompts keyed by food; missing answers count as 1"},
			}),
		}, s.handleLogPhoto},
		{&protocol.Tool{
			Name:        "add_item",
			Description: "Log a quantity of a food without a photo",
			InputSchema: objectSchema([]string{"session_id", "food"}, map[string]interface{}{
				"session_id": sessionIDProp,
				"food":       foodProp,
				"unit":       unitProp,
				"quantity":   quantityProp,
			}),
		}, s.handleAddItem},
		{&protocol.Tool{
			Name:        "get_items",
			Description: "List the items logged in a session, oldest first, with totals",
			InputSchema: sessionOnly,
		}, s.handleGetItems},
		{&protocol.Tool{
			Name:        "get_totals",
			Description: "Nutrient totals for a session",
			InputSchema: sessionOnly,
		}, s.handleGetTotals},
		{&protocol.Tool{
			Name:        "resolve_mass",
			Description: "Convert a quantity of units of a food into grams",
			InputSchema: objectSchema([]string{"food"}, map[string]interface{}{
				"food":     foodProp,
				"unit":     unitProp,
				"quantity": quantityProp,
			}),
		}, s.handleResolveMass},
		{&protocol.Tool{
			Name:        "list_portions",
			Description: "Show the portion table and the fallback grams per unit",
			InputSchema: objectSchema(nil, nil),
		}, s.handleListPortions},
		{&protocol.Tool{
			Name:        "end_session",
			Description: "Discard a session and its items",
			InputSchema: sessionOnly,
		}, s.handleEndSession},
	}
}

// registerTools exposes every tool on both the MCP server and the JSON endpoint.
func (s *FoodLogServer) registerTools() {
	defs := s.toolDefs()
	s.tools = make(map[string]toolHandler, len(defs))
	for _, def := range defs {
		s.tools[def.tool.Name] = def.handler
		s.server.RegisterTool(def.tool, s.mcpTool(def.tool.Name, def.handler))
		s.logger.Debug("registered tool", zap.String("tool", def.tool.Name))
	}
}
