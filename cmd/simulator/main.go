// The simulator publishes synthetic sensor readings for local development:
// a slow daily-cycle sine wave with gaussian noise and occasional spikes,
// emitted either to an MQTT broker or a Kafka topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/segmentio/kafka-go"
)

var (
	mode     = flag.String("mode", "mqtt", "Transport to publish on: mqtt or kafka")
	broker   = flag.String("broker", "mqtt://localhost:1883", "MQTT broker URL or Kafka bootstrap address")
	topic    = flag.String("topic", "home/livingroom/temperature", "Sensor topic (MQTT) or Kafka topic")
	key      = flag.String("key", "livingroom_temperature", "Message key used in kafka mode")
	interval = flag.Duration("interval", time.Second, "Delay between readings")
	baseline = flag.Float64("baseline", 21.0, "Baseline value of the simulated sensor")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping simulator...")
		cancel()
	}()

	var publish func(context.Context, []byte) error
	switch *mode {
	case "mqtt":
		cm, err := connectMQTT(ctx)
		if err != nil {
			log.Fatalf("MQTT connect failed: %v", err)
		}
		publish = func(ctx context.Context, payload []byte) error {
			_, err := cm.Publish(ctx, &paho.Publish{Topic: *topic, Payload: payload, QoS: 1})
			return err
		}
	case "kafka":
		writer := &kafka.Writer{
			Addr:     kafka.TCP(*broker),
			Topic:    *topic,
			Balancer: &kafka.LeastBytes{},
		}
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("Error closing kafka writer: %v", err)
			}
		}()
		publish = func(ctx context.Context, payload []byte) error {
			return writer.WriteMessages(ctx, kafka.Message{Key: []byte(*key), Value: payload})
		}
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}

	log.Printf("Simulating sensor on %s via %s every %v", *topic, *mode, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	for {
		select {
		case <-ticker.C:
			value := nextValue(rng, time.Since(start))
			payload := []byte(strconv.FormatFloat(value, 'f', 2, 64))
			if err := publish(ctx, payload); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error publishing reading: %v", err)
				continue
			}
			log.Printf("Published reading: %s", payload)

		case <-ctx.Done():
			log.Println("Simulator stopped.")
			return
		}
	}
}

func connectMQTT(ctx context.Context) (*autopaho.ConnectionManager, error) {
	u, err := url.Parse(*broker)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		ClientConfig: paho.ClientConfig{
			ClientID: "sensorstats-simulator",
		},
	})
	if err != nil {
		return nil, err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, err
	}
	return cm, nil
}

// nextValue models a daily temperature cycle with noise and rare spikes.
func nextValue(rng *rand.Rand, elapsed time.Duration) float64 {
	cycle := 2.5 * math.Sin(2*math.Pi*elapsed.Hours()/24)
	noise := rng.NormFloat64() * 0.15
	value := *baseline + cycle + noise
	if rng.Float64() < 0.01 { // occasional sensor glitch
		value += rng.Float64() * 8
	}
	return value
}
