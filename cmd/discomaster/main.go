// Command discomaster is a debugging master: it connects to one agent and
// streams a moving test pattern to it.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discoagent/internal/config"
	"discoagent/internal/frame"
	"discoagent/internal/logger"
	"discoagent/internal/master"
	"github.com/spf13/cobra"
)

var opts struct {
	host      string
	discoPort int
	dataPort  int
	pixels    int
	frames    int
	fps       int
	level     string
}

var rootCmd = &cobra.Command{
	Use:           "discomaster",
	Short:         "Handshake with an agent and stream a test pattern",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	def := config.Default()
	rootCmd.Flags().StringVar(&opts.host, "agent", "127.0.0.1", "Agent host")
	rootCmd.Flags().IntVar(&opts.discoPort, "disco-port", def.Disco.Port, "Agent discovery port")
	rootCmd.Flags().IntVar(&opts.dataPort, "data-port", def.Transport.Port, "Agent data port")
	rootCmd.Flags().IntVar(&opts.pixels, "pixels", def.Sink.Pixels, "Pixels per frame")
	rootCmd.Flags().IntVar(&opts.frames, "frames", 100, "Frames to send, 0 for no limit")
	rootCmd.Flags().IntVar(&opts.fps, "fps", 30, "Frames per second")
	rootCmd.Flags().StringVar(&opts.level, "log-level", "info", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if opts.fps <= 0 || opts.pixels <= 0 {
		return fmt.Errorf("fps and pixels must be positive")
	}
	log, err := logger.NewLogger(config.LogConf{Level: opts.level})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m, err := master.Dial(log, opts.host, opts.discoPort, opts.dataPort, 500*time.Millisecond)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.Handshake(ctx, map[string]interface{}{"pixels": opts.pixels}); err != nil {
		return err
	}

	t := time.NewTicker(time.Second / time.Duration(opts.fps))
	defer t.Stop()
	for i := 0; opts.frames == 0 || i < opts.frames; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if _, err := m.SendFrame(0, pattern(opts.pixels, i)); err != nil {
			log.With(logger.Fields{"module": "master"}).Warnf("frame %d: %v", i, err)
		}
	}
	return nil
}

// pattern is a rainbow shifted by one pixel per frame.
func pattern(n, shift int) []frame.RGBA {
	px := make([]frame.RGBA, n)
	for i := range px {
		phase := 2 * math.Pi * float64(i+shift) / float64(n)
		px[i] = frame.RGBA{
			R: float32(0.5 + 0.5*math.Sin(phase)),
			G: float32(0.5 + 0.5*math.Sin(phase+2*math.Pi/3)),
			B: float32(0.5 + 0.5*math.Sin(phase+4*math.Pi/3)),
			A: 1,
		}
	}
	return px
}
