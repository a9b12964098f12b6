package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/normen/mooerctl/device"
	"github.com/normen/mooerctl/layout"
)

// Pedal is the part of the device session the tools drive.
type Pedal interface {
	Identify(ctx context.Context) error
	Identity() device.Identity
	State() device.State
	ActivePreset() layout.Preset
	ActiveIndex() int
	ChangePreset(ctx context.Context, index int) error
	UploadFile(ctx context.Context, path string, slot int) error
}

// identifyWait bounds how long mooer_identify waits for the reply.
var identifyWait = 2 * time.Second

type presetEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Amp   string `json:"amp"`
	Cab   string `json:"cab"`
}

// NewServer registers the pedal tools on a new MCP server.
func NewServer(p Pedal, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Mooer GE-200",
		version,
		server.WithToolCapabilities(false),
	)
	t := &tools{pedal: p}

	s.AddTool(mcp.NewTool("mooer_identify",
		mcp.WithDescription("Asks the pedal for its model and firmware version."),
	), t.identify)

	s.AddTool(mcp.NewTool("mooer_list-presets",
		mcp.WithDescription("Lists the names of all presets downloaded from the pedal."),
	), t.listPresets)

	s.AddTool(mcp.NewTool("mooer_get-active-preset",
		mcp.WithDescription("Returns the active preset with all module settings as JSON."),
	), t.getActivePreset)

	s.AddTool(mcp.NewTool("mooer_change-preset",
		mcp.WithDescription("Selects a preset on the pedal."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("The preset index (0-199).")),
	), t.changePreset)

	s.AddTool(mcp.NewTool("mooer_upload-file",
		mcp.WithDescription("Uploads an amp model (.amp, .gnr), a cabinet impulse response (.wav) or a preset (.mo) to the pedal."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to upload.")),
		mcp.WithNumber("slot", mcp.Description("Target slot for amp and cabinet uploads.")),
	), t.uploadFile)

	return s
}

// ServeStdio blocks serving the tools on stdin/stdout.
func ServeStdio(p Pedal, version string) error {
	log.Println("Starting MCP server...")
	return server.ServeStdio(NewServer(p, version))
}

type tools struct {
	pedal Pedal
}

func (t *tools) identify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling identify request.")
	if err := t.pedal.Identify(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, identifyWait)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if id := t.pedal.Identity(); id.Model != "" {
			return mcp.NewToolResultText(fmt.Sprintf("%s firmware %s", id.Model, id.Version)), nil
		}
		select {
		case <-ctx.Done():
			return mcp.NewToolResultError("the pedal did not answer"), nil
		case <-ticker.C:
		}
	}
}

func (t *tools) listPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := t.pedal.State()
	var presets []presetEntry
	for i := range state.SavedPresets {
		if state.Loaded[i] {
			fp := state.SavedPresets[i]
			presets = append(presets, presetEntry{
				Index: i,
				Name:  state.PresetName(i),
				Amp:   layout.AmpModelName(int(fp.Amp.Type), &state.AmpNames),
				Cab:   layout.CabModelName(int(fp.Cab.Type)),
			})
		}
	}
	if len(presets) == 0 {
		return mcp.NewToolResultError("no presets downloaded yet"), nil
	}
	asJson, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presets to JSON: %v", err)
	}
	return mcp.NewToolResultText(string(asJson)), nil
}

func (t *tools) getActivePreset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index := t.pedal.ActiveIndex()
	if index < 0 {
		return mcp.NewToolResultError("the pedal has not reported its active preset yet"), nil
	}
	p := t.pedal.ActivePreset()
	state := t.pedal.State()
	asJson, err := json.MarshalIndent(struct {
		Index   int           `json:"index"`
		Name    string        `json:"name"`
		AmpName string        `json:"amp"`
		CabName string        `json:"cab"`
		Preset  layout.Preset `json:"preset"`
	}{
		Index:   index,
		Name:    p.GetName(),
		AmpName: layout.AmpModelName(int(p.Amp.Type), &state.AmpNames),
		CabName: layout.CabModelName(int(p.Cab.Type)),
		Preset:  p,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preset to JSON: %v", err)
	}
	return mcp.NewToolResultText(string(asJson)), nil
}

func (t *tools) changePreset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := request.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Println("[mcp] Changing preset to", index)
	if err := t.pedal.ChangePreset(ctx, index); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Preset %d selected.", index)), nil
}

func (t *tools) uploadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slot := request.GetInt("slot", 0)
	if err := device.CheckUploadSlot(path, slot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Println("[mcp] Uploading", path, "to slot", slot)
	if err := t.pedal.UploadFile(ctx, path, slot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Upload finished."), nil
}
