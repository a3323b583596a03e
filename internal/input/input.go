// Package input injects pointer events from outside the browser's own event
// model. The challenge widget rejects events it can detect as
// script-dispatched, so the primary backend drives the OS cursor; a CDP
// backend exists for environments without an X display.
package input

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// Pointer is the narrow simulated-input surface the challenge solver uses.
// Coordinates are interpreted in the backend's native space: absolute screen
// coordinates for the OS backend, viewport coordinates for the CDP backend.
type Pointer interface {
	MoveTo(ctx context.Context, x, y int) error
	Click(ctx context.Context) error
}

// XDoTool drives the real OS cursor on X11. Events it produces are
// indistinguishable from human input as far as the page can observe.
type XDoTool struct {
	bin    string
	logger *slog.Logger
}

func NewXDoTool(logger *slog.Logger) *XDoTool {
	return &XDoTool{bin: "xdotool", logger: logger}
}

// XDoToolAvailable reports whether the xdotool binary is on PATH.
func XDoToolAvailable() bool {
	_, err := exec.LookPath("xdotool")
	return err == nil
}

func (x *XDoTool) MoveTo(ctx context.Context, px, py int) error {
	return x.run(ctx, "mousemove", "--sync", strconv.Itoa(px), strconv.Itoa(py))
}

func (x *XDoTool) Click(ctx context.Context) error {
	return x.run(ctx, "click", "1")
}

func (x *XDoTool) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, x.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("xdotool %s: %w\n%s", args[0], err, out)
	}
	x.logger.Debug("pointer event dispatched", "backend", "xdotool", "args", args)
	return nil
}
