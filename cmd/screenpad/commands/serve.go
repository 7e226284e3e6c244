package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/screenpad/screenpad/internal/api"
	"github.com/screenpad/screenpad/internal/config"
	"github.com/screenpad/screenpad/internal/display"
	"github.com/screenpad/screenpad/internal/input"
	"github.com/screenpad/screenpad/internal/logger"
	"github.com/screenpad/screenpad/internal/native/x11"
	"github.com/screenpad/screenpad/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screenpad server",
	Long: `Start the websocket server with X11 capture and input injection.

Point a client at ws://<host>:<port>/ws to stream a capture target and
send pointer input back.`,
	Example: `  # Start on the default port (1701)
  screenpad serve

  # Start on a custom port with debug logging
  screenpad serve --port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}
	if viper.IsSet("port") && viper.GetInt("port") > 0 {
		configMgr.SetPort(viper.GetInt("port"))
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		configMgr.SetLogLevel(viper.GetString("log_level"))
	}
	cfg := configMgr.Get()

	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("serve")

	// The capture backend is picked once at startup; X11 is the only one
	// wired so far.
	ctx := display.Open(x11.New())
	if ctx == nil {
		return fmt.Errorf("could not open the X11 display, is $DISPLAY set?")
	}
	defer ctx.Close()

	var injector input.Injector
	if cfg.EnableInput {
		uinj, err := input.NewUinputInjector()
		if err != nil {
			log.Warn().Err(err).Msg("Input injection unavailable, serving view-only")
		} else {
			injector = uinj
			defer uinj.Close()
			for _, name := range uinj.DeviceNames() {
				ctx.MapInputDevice(name, name == input.PadDeviceName)
			}
		}
	}

	var prev *preview.Streamer
	if cfg.EnablePreview {
		prev = preview.NewStreamer(ctx, preview.Options{
			FPS:     cfg.PreviewFPS,
			Quality: cfg.JPEGQuality,
		})
		if err := prev.Start(); err != nil {
			log.Warn().Err(err).Msg("Preview unavailable")
			prev = nil
		} else {
			defer prev.Stop()
		}
	}

	server := api.NewServer(ctx, injector, cfg, prev)
	log.Info().Int("port", cfg.Port).Msg("Starting server")
	return server.Start()
}
