package nvim

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/neovim/go-client/nvim"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/sokinpui/gfix/gfix"
	"github.com/sokinpui/gfix/internal/editor"
)

const (
	methodStart       = "gfix.start"
	methodMessage     = "gfix.message"
	methodPanelClosed = "gfix.panel_closed"
	methodReset       = "gfix.reset"
)

const (
	levelInfo  = 2
	levelError = 4
)

// Host serves gfix to the Neovim instance that started it over stdio.
// It lives as long as the editor session, so the debugging conversation
// persists across invocations.
type Host struct {
	v       *nvim.Nvim
	app     *gfix.App
	log     *zap.Logger
	channel int

	wg     conc.WaitGroup
	mu     sync.Mutex
	panels map[string]func(editor.Message)
}

// NewHost registers the gfix handlers on v. Call Serve to start.
func NewHost(v *nvim.Nvim, app *gfix.App, log *zap.Logger) (*Host, error) {
	h := &Host{
		v:      v,
		app:    app,
		log:    log,
		panels: make(map[string]func(editor.Message)),
	}
	handlers := map[string]any{
		methodStart:       h.onStart,
		methodMessage:     h.onMessage,
		methodPanelClosed: h.onPanelClosed,
		methodReset:       h.onReset,
	}
	for name, fn := range handlers {
		if err := v.RegisterHandler(name, fn); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return h, nil
}

// Serve runs the RPC loop until Neovim closes the channel. startupErr, when
// set, is shown once after the connection is up.
func (h *Host) Serve(startupErr string) error {
	errc := make(chan error, 1)
	go func() { errc <- h.v.Serve() }()

	if err := h.defineCommands(); err != nil {
		h.v.Close()
		<-errc
		return err
	}
	if startupErr != "" {
		h.notify(startupErr, levelError)
	}

	err := <-errc
	h.wg.Wait()
	return err
}

func (h *Host) defineCommands() error {
	h.channel = h.v.ChannelID()
	b := h.v.NewBatch()
	b.Command(fmt.Sprintf("command! -range Gfix call rpcnotify(%d, '%s', <range>, <line1>, <line2>)", h.channel, methodStart))
	b.Command(fmt.Sprintf("command! GfixResetHistory call rpcnotify(%d, '%s')", h.channel, methodReset))
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to define commands: %w", err)
	}
	h.log.Info("gfix host ready", zap.Int("channel", h.channel))
	return nil
}

func (h *Host) onStart(rng, line1, line2 int) error {
	h.wg.Go(func() {
		buf, err := h.v.CurrentBuffer()
		if err != nil {
			h.log.Error("failed to get current buffer", zap.Error(err))
			return
		}
		ed := newBufferEditor(h, h.v, buf, rng, line1, line2)
		if err := h.app.Start(context.Background(), ed); err != nil {
			h.log.Info("invocation ended with error", zap.Error(err))
		}
	})
	return nil
}

func (h *Host) onMessage(panelID, data string) error {
	h.mu.Lock()
	fn, ok := h.panels[panelID]
	h.mu.Unlock()
	if !ok {
		h.log.Warn("message for unknown panel", zap.String("panel", panelID))
		return nil
	}
	msg, err := editor.DecodeMessage([]byte(data))
	if err != nil {
		h.log.Warn("dropping panel message", zap.Error(err))
		return err
	}
	h.wg.Go(func() { fn(msg) })
	return nil
}

func (h *Host) onPanelClosed(panelID string) error {
	h.mu.Lock()
	delete(h.panels, panelID)
	h.mu.Unlock()
	return nil
}

func (h *Host) onReset() error {
	h.app.History().Reset()
	h.wg.Go(func() { h.notify("Debugging conversation cleared.", levelInfo) })
	return nil
}

func (h *Host) addPanel(id string, fn func(editor.Message)) {
	h.mu.Lock()
	h.panels[id] = fn
	h.mu.Unlock()
}

func (h *Host) notify(msg string, level int) {
	if err := h.v.ExecLua("vim.notify(...)", nil, msg, level); err != nil {
		h.log.Warn("failed to notify", zap.String("message", msg), zap.Error(err))
	}
}

// Serve connects to the parent Neovim over stdin and stdout and blocks
// until the session ends.
func Serve(app *gfix.App, log *zap.Logger, startupErr string) error {
	stdout := os.Stdout
	// Keep stray writes off the RPC channel.
	os.Stdout = os.Stderr

	v, err := nvim.New(os.Stdin, stdout, stdout, func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	})
	if err != nil {
		return fmt.Errorf("failed to connect to neovim: %w", err)
	}
	h, err := NewHost(v, app, log)
	if err != nil {
		return err
	}
	return h.Serve(startupErr)
}
