// Package clientmqtt publishes frames and agent status to an MQTT broker.
package clientmqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"discoagent/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishTimeout bounds how long a publish may wait for the broker.
const publishTimeout = 2 * time.Second

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	log       logger.Logger
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
}

// Publisher is what the sink and status reporter need from a client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	return &ClientMQTT{
		log:       log,
		cfgClient: cfgClient,
	}
}

// Start connects to the broker, giving up when ctx is done.
func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" || c.log.GetLevel() == "trace" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker.
func (c *ClientMQTT) Publish(topic string, payload []byte) error {
	if c.client == nil {
		return errors.New("mqtt client is not started")
	}
	token := c.client.Publish(topic, c.cfgClient.Qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("error publish topic %s: %w", topic, err)
	}
	return nil
}

// Topic returns prefix/controller/name.
func (c *ClientMQTT) Topic(controller, name string) string {
	return Topic(c.cfgClient.TopicPrefix, controller, name)
}

// Topic joins the topic levels used by the agent.
func Topic(prefix, controller, name string) string {
	if prefix == "" {
		return controller + "/" + name
	}
	return prefix + "/" + controller + "/" + name
}

func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to server")
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v", err)
}
