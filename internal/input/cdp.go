package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// CDP dispatches mouse events through the DevTools protocol. Some widget
// variants reject CDP-originated events; this backend is the fallback when
// no X display (and therefore no xdotool) is available.
type CDP struct {
	page   *rod.Page
	logger *slog.Logger

	mu   sync.Mutex
	x, y float64
}

func NewCDP(page *rod.Page, logger *slog.Logger) *CDP {
	return &CDP{page: page, logger: logger}
}

func (c *CDP) MoveTo(ctx context.Context, px, py int) error {
	c.mu.Lock()
	c.x, c.y = float64(px), float64(py)
	c.mu.Unlock()

	err := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    float64(px),
		Y:    float64(py),
	}.Call(c.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("cdp mouse move: %w", err)
	}
	return nil
}

func (c *CDP) Click(ctx context.Context) error {
	c.mu.Lock()
	x, y := c.x, c.y
	c.mu.Unlock()

	page := c.page.Context(ctx)
	press := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMousePressed,
		X:          x,
		Y:          y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	if err := press.Call(page); err != nil {
		return fmt.Errorf("cdp mouse press: %w", err)
	}
	release := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMouseReleased,
		X:          x,
		Y:          y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	if err := release.Call(page); err != nil {
		return fmt.Errorf("cdp mouse release: %w", err)
	}
	c.logger.Debug("pointer event dispatched", "backend", "cdp", "x", x, "y", y)
	return nil
}
