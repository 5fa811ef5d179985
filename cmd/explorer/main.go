// Package main is the desktop entry point of the drone explorer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/assets"
	"github.com/Faultbox/drone-explorer/internal/catalog"
	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/controls"
	"github.com/Faultbox/drone-explorer/internal/engine/capture"
	"github.com/Faultbox/drone-explorer/internal/engine/input"
	"github.com/Faultbox/drone-explorer/internal/engine/renderer"
	"github.com/Faultbox/drone-explorer/internal/engine/window"
	"github.com/Faultbox/drone-explorer/internal/explorer"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/internal/observability"
)

const title = "Drone Explorer"

var flagCatalog = flag.String("catalog", "", "YAML file with extra part descriptions")

func init() {
	// SDL and OpenGL calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.WriteRequested() {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(config.UserConfigPath())
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Drone Explorer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("explorer failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("explorer closed normally")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, logger.Named("tracing"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger.Named("tracing"))

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if cfg.Metrics.ListenAddr != "" {
		srv := serveMetrics(cfg.Metrics.ListenAddr, metrics)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	cat := catalog.Default()
	if *flagCatalog != "" {
		if cat, err = catalog.LoadFile(*flagCatalog); err != nil {
			return err
		}
	}

	source := assets.NewManager()
	defer source.Close()
	for _, dir := range cfg.Asset.SearchPaths {
		if err := source.AddDir(dir); err != nil {
			logger.Warn("skipping search path", zap.String("dir", dir), zap.Error(err))
		}
	}

	bindings, err := controls.FromConfig(cfg.Controls)
	if err != nil {
		return fmt.Errorf("key bindings: %w", err)
	}

	win, err := window.New(window.ConfigFrom(title, cfg.Graphics), logger.Named("window"))
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer win.Close()

	width, height := win.Size()
	rend, err := renderer.New(renderer.Config{Width: width, Height: height}, logger.Named("renderer"))
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer rend.Close()

	app, err := explorer.New(cfg, explorer.Deps{
		Source:    source,
		Logger:    logger.Log,
		Metrics:   metrics,
		Catalog:   cat,
		OpenModel: chooseModel,
	})
	if err != nil {
		return err
	}
	defer app.Close()
	app.Resize(width, height)

	if err := app.Load(ctx); err != nil {
		return err
	}
	shots := capture.New(cfg.Graphics.ScreenshotDir, "drone")
	return loop(app, win, rend, shots, input.New(bindings), cfg.Graphics.FPSLimit)
}

// loop runs input, update and draw until the window closes.
func loop(app *explorer.App, win *window.Window, rend *renderer.Renderer, shots *capture.Capturer, in *input.Input, fpsLimit int) error {
	var minFrame time.Duration
	if fpsLimit > 0 {
		minFrame = time.Second / time.Duration(fpsLimit)
	}

	last := time.Now()
	titleTimer := time.Now()
	frames := 0
	phase := app.State().Phase

	for {
		now := time.Now()
		dt := now.Sub(last)
		last = now

		if in.Update() {
			return nil
		}
		screenshot := false
		for _, ev := range in.Events() {
			if ev.Type == input.EventKeyDown && ev.Key == "Escape" {
				return nil
			}
			if ev.Type == input.EventKeyDown && ev.Action == controls.Screenshot {
				screenshot = true
				continue
			}
			dispatch(app, rend, ev)
		}

		if err := app.Frame(dt); err != nil && !errors.Is(err, explorer.ErrHalted) {
			return err
		}

		st := app.State()
		if st.Phase != phase {
			if st.Phase == explorer.PhaseReady {
				rend.Purge(app.Scene())
			}
			phase = st.Phase
		}

		rend.Draw(app.Scene(), app.Camera())
		if screenshot {
			saveScreenshot(rend, shots)
		}
		win.SwapBuffers()

		frames++
		if time.Since(titleTimer) >= time.Second {
			win.SetTitle(windowTitle(st, frames))
			frames = 0
			titleTimer = time.Now()
		}

		if minFrame > 0 {
			if spare := minFrame - time.Since(now); spare > 0 {
				time.Sleep(spare)
			}
		}
	}
}

func dispatch(app *explorer.App, rend *renderer.Renderer, ev input.Event) {
	switch ev.Type {
	case input.EventWindowResize:
		rend.Resize(ev.Width, ev.Height)
		app.Resize(ev.Width, ev.Height)
	case input.EventKeyDown:
		if !ev.Repeat && ev.Action != controls.None {
			app.KeyDown(ev.Action)
		}
	case input.EventKeyUp:
		if ev.Action != controls.None {
			app.KeyUp(ev.Action)
		}
	case input.EventMouseDown:
		if ev.Button == sdl.BUTTON_LEFT {
			app.MouseDown(float32(ev.MouseX), float32(ev.MouseY))
		}
	case input.EventMouseMove:
		app.MouseMove(float32(ev.MouseX), float32(ev.MouseY), float32(ev.RelX), float32(ev.RelY))
	case input.EventMouseUp:
		if ev.Button == sdl.BUTTON_LEFT {
			app.MouseUp(float32(ev.MouseX), float32(ev.MouseY))
		}
	case input.EventMouseWheel:
		app.Wheel(ev.Wheel)
	}
}

func windowTitle(st explorer.State, fps int) string {
	switch st.Phase {
	case explorer.PhaseLoading:
		return fmt.Sprintf("%s - loading %.0f%%", title, st.Progress*100)
	case explorer.PhaseHalted:
		return fmt.Sprintf("%s - error: %v (press reload)", title, st.Err)
	}
	label := st.Info.Title
	if label == "" {
		label = st.Selected
	}
	status := "stopped"
	if st.Flight.Started {
		status = fmt.Sprintf("flying alt %.1f thrust %.1f", st.Flight.Position.Y, st.Flight.Thrust)
	}
	if st.Spinning {
		status += ", spinning"
	}
	return fmt.Sprintf("%s - %s - %s - %d fps", title, label, status, fps)
}

func saveScreenshot(rend *renderer.Renderer, shots *capture.Capturer) {
	pixels, w, h := rend.ReadPixels()
	name, err := shots.SaveFramebuffer(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("file", name))
}

// chooseModel shows a native file dialog for an OBJ file.
func chooseModel() (string, bool) {
	path, err := dialog.File().
		Filter("Wavefront OBJ", "obj").
		Filter("All Files", "*").
		Title("Open Model").
		Load()
	if err != nil {
		if !errors.Is(err, dialog.ErrCancelled) {
			logger.Warn("file dialog failed", zap.Error(err))
		}
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, true
	}
	return abs, true
}

func serveMetrics(addr string, m *observability.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
