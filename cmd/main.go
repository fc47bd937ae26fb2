package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"discoagent/internal/agent"
	"discoagent/internal/artnet"
	"discoagent/internal/clientmqtt"
	"discoagent/internal/config"
	"discoagent/internal/disco"
	"discoagent/internal/logger"
	"discoagent/internal/pixel"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	configFile string
	mode       string
)

var rootCmd = &cobra.Command{
	Use:           "discoagent",
	Short:         "Disco lighting agent",
	Long:          "discoagent waits for a master to discover it (or registers over HTTP) and renders the pixel frames it streams.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("discoagent %s\n", Version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
	rootCmd.Flags().StringVar(&mode, "mode", "", "Override the bootstrap mode (discover or register)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig(configFile, config.WithMode(mode))
	if err != nil {
		return fmt.Errorf("configuration file read error: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create a logger: %w", err)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	desc, err := agent.Descriptor(cfg.Agent)
	if err != nil {
		return fmt.Errorf("failed to build hardware descriptor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var client *clientmqtt.ClientMQTT
	if cfg.Sink.Type == "mqtt" || cfg.MQTT.Status {
		client = clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT))
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MQTT service: %w", err)
		}
		defer client.Stop()
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
	}

	sink, closeSink, err := newSink(log, cfg, desc, client)
	if err != nil {
		return err
	}
	defer closeSink()

	var status *clientmqtt.StatusReporter
	if client != nil && cfg.MQTT.Status {
		status = clientmqtt.NewStatusReporter(log, client, desc.ControllerID, client.Topic(desc.ControllerID, "status"))
	}

	a, err := agent.New(log, cfg, desc, sink, status)
	if err != nil {
		return err
	}
	if err := a.Run(ctx); err != nil {
		log.With(logger.Fields{"module": "agent"}).Errorf("stopped: %v", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

func newSink(log *logger.Log, cfg *config.Config, desc disco.HardwareDescriptor, client *clientmqtt.ClientMQTT) (pixel.Sink, func(), error) {
	switch cfg.Sink.Type {
	case "artnet":
		s, err := artnet.NewSink(log, cfg.ArtNet, cfg.Sink.Pixels)
		if err != nil {
			return nil, nil, fmt.Errorf("error while creating a new controller art-net: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "mqtt":
		s := clientmqtt.NewSink(log, client, desc.ControllerID, client.Topic(desc.ControllerID, "frame"), cfg.Sink.Pixels)
		return s, func() {}, nil
	default:
		return pixel.NewLogSink(log, cfg.Sink.Pixels), func() {}, nil
	}
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}
