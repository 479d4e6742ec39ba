package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/series"
)

// SampleSink persists aggregated minute samples.
type SampleSink interface {
	SaveSamples(ctx context.Context, samples []database.Sample) error
}

type Options struct {
	Host              string
	Port              int16
	Username          string
	Password          string
	ClientID          string
	Prefix            string
	InactivityTimeout time.Duration
}

// Message is one reading of the solarbank and its meters, power in W and
// state of charge as a fraction.
type Message struct {
	Time   time.Time          `json:"ts"`
	Values map[string]float64 `json:"values"`
}

type Client struct {
	mqttClient    mqtt.Client
	logger        *slog.Logger
	sink          SampleSink
	aggregator    *Aggregator
	prefix        string
	timeout       time.Duration
	activity      *Activity
	stopMu        sync.Mutex
	stopMonitorCh chan struct{}
}

func New(logger *slog.Logger, opts Options, sink SampleSink) *Client {
	mo := mqtt.NewClientOptions()
	mo.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	mo.SetClientID(opts.ClientID)
	mo.SetUsername(opts.Username)
	mo.SetPassword(opts.Password)
	mo.SetAutoReconnect(true)
	mo.OnConnect = func(client mqtt.Client) {
		logger.Info("telemetry MQTT connected")
	}
	mo.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("telemetry MQTT connection lost", slog.Any("error", err))
	}

	mqttLog := logger.With(slog.String("module", "mqtt"))
	mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)

	timeout := opts.InactivityTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		mqttClient: mqtt.NewClient(mo),
		logger:     logger,
		sink:       sink,
		aggregator: NewAggregator(120),
		prefix:     strings.TrimSuffix(opts.Prefix, "/"),
		timeout:    timeout,
		activity:   NewActivity(time.Now),
	}
}

func (c *Client) samplesTopic() string {
	return c.prefix + "/samples"
}

func (c *Client) forecastTopic(view string) string {
	return c.prefix + "/forecast/" + view
}

func (c *Client) Connect() error {
	c.logger.Debug("connecting telemetry MQTT client")

	if token := c.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	c.inactivityWatchdog()

	token := c.mqttClient.Subscribe(c.samplesTopic(), 0, func(client mqtt.Client, msg mqtt.Message) {
		c.activity.Touch()
		c.handle(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// Disconnect saves the pending minute before closing the connection.
func (c *Client) Disconnect() {
	c.logger.Info("disconnecting telemetry mqtt client")
	c.stopMu.Lock()
	if c.stopMonitorCh != nil {
		close(c.stopMonitorCh)
		c.stopMonitorCh = nil
	}
	c.stopMu.Unlock()

	c.save(c.aggregator.Flush())

	token := c.mqttClient.Unsubscribe(c.samplesTopic())
	token.WaitTimeout(1 * time.Second)
	if token.Error() != nil {
		c.logger.Error("error unsubscribing from topic", slog.Any("error", token.Error()))
	}

	c.mqttClient.Disconnect(250)
}

// PublishForecast sends a retained forecast table for a view.
func (c *Client) PublishForecast(view string, payload []byte) error {
	token := c.mqttClient.Publish(c.forecastTopic(view), 0, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timeout when publishing %s forecast", view)
	}
	if token.Error() != nil {
		return fmt.Errorf("error when publishing %s forecast: %w", view, token.Error())
	}
	return nil
}

func (c *Client) handle(payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Error("error when reading sample message", slog.Any("error", err))
		return
	}
	if msg.Time.IsZero() {
		c.logger.Warn("sample message without timestamp, ignored")
		return
	}

	values := make(map[series.Channel]float64, len(msg.Values))
	for k, v := range msg.Values {
		values[series.Channel(strings.ToUpper(strings.TrimSpace(k)))] = v
	}

	flushed, ok := c.aggregator.Add(msg.Time, values)
	if !ok {
		c.logger.Warn("sample message older than the pending minute, ignored",
			slog.String("ts", msg.Time.Format(time.RFC3339)))
		return
	}
	c.save(flushed)
}

func (c *Client) save(samples []database.Sample) {
	if len(samples) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.sink.SaveSamples(ctx, samples); err != nil {
		c.logger.Error("error when saving samples", slog.Any("error", err))
	}
}

// inactivityWatchdog saves the pending minute once traffic stops.
func (c *Client) inactivityWatchdog() {
	trafficOk := true
	c.activity.Touch()

	c.stopMu.Lock()
	c.stopMonitorCh = make(chan struct{})
	stop := c.stopMonitorCh
	c.stopMu.Unlock()

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if c.activity.Idle(c.timeout) {
					if trafficOk {
						c.logger.Warn(fmt.Sprintf("no incoming mqtt traffic for the last %.0f seconds", c.timeout.Seconds()))
						c.save(c.aggregator.Flush())
						trafficOk = false
					}
				} else if !trafficOk {
					c.logger.Info("mqtt traffic is restored")
					trafficOk = true
				}

			case <-stop:
				c.logger.Debug("stopping telemetry monitor routine")
				return
			}
		}
	}()
}
